package database

import (
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const demoDeveloperEmail = "founder@demo.angelmatch.local"

type demoProject struct {
	Title         string
	Tagline       string
	Category      string
	Description   string
	Problem       string
	Solution      string
	Traction      string
	MinInvestment float64
	MaxInvestment float64
	ValuationCap  float64
	Addendum      string // non-empty means the project requires an addendum
	Lead          string
}

var demoProjects = []demoProject{
	{
		Title:         "PayFlow Africa",
		Tagline:       "Cross-border payments made simple for African SMEs",
		Category:      "FinTech",
		Description:   "PayFlow Africa enables cross-border payments for small and medium businesses across the continent at a fraction of current fees.",
		Problem:       "African SMEs lose billions annually to high cross-border transaction fees and slow settlement.",
		Solution:      "A payment rail with local collection accounts and same-day settlement between corridors.",
		Traction:      "R4.2m monthly volume, 310 paying merchants.",
		MinInvestment: 25000,
		MaxInvestment: 250000,
		ValuationCap:  2000000,
		Addendum:      "The Recipient shall not contact PayFlow's banking partners named in the data room.",
		Lead:          "Thandi Mokoena",
	},
	{
		Title:         "MediConnect",
		Tagline:       "Telemedicine for rural clinics",
		Category:      "HealthTech",
		Description:   "MediConnect links rural clinics to certified doctors through video consultations and shared patient records.",
		Problem:       "Most rural clinics have no resident doctor.",
		Solution:      "Scheduled video rounds and an offline-first records app for nurses.",
		Traction:      "42 clinics live in two provinces.",
		MinInvestment: 50000,
		ValuationCap:  3500000,
		Lead:          "Sipho Dlamini",
	},
	{
		Title:         "FarmSense",
		Tagline:       "Low-cost sensors for smallholder farmers",
		Category:      "AgriTech",
		Description:   "Soil and weather sensors with SMS-based advice for farmers without smartphones.",
		Problem:       "Smallholder farmers lose a large share of crops to irrigation and timing mistakes.",
		Solution:      "A sensor kit under R900 and daily SMS recommendations.",
		Traction:      "1,800 kits deployed, 23% average yield increase in pilots.",
		MinInvestment: 20000,
		MaxInvestment: 100000,
		ValuationCap:  1500000,
		Lead:          "Naledi Khumalo",
	},
	{
		Title:         "FleetTrack",
		Tagline:       "Last-mile delivery optimization",
		Category:      "Logistics",
		Description:   "Route optimization and live tracking for delivery fleets.",
		Problem:       "Inefficient routes waste fuel and miss delivery windows.",
		Solution:      "Dynamic routing that adapts to traffic and delivery windows.",
		Traction:      "Three courier companies on annual contracts.",
		MinInvestment: 45000,
		ValuationCap:  3000000,
		Addendum:      "Fleet telemetry samples may not be retained after the evaluation ends.",
		Lead:          "Johan van Wyk",
	},
}

// SeedProjects creates a demo founder and approved projects when none exist.
func SeedProjects(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Project{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	developer, err := demoDeveloper(db)
	if err != nil {
		return err
	}

	var categories []models.Category
	if err := db.Find(&categories).Error; err != nil {
		return err
	}
	byName := make(map[string]models.Category, len(categories))
	for _, c := range categories {
		byName[c.Name] = c
	}

	for _, p := range demoProjects {
		category, ok := byName[p.Category]
		if !ok {
			continue
		}
		project := &models.Project{
			DeveloperID:       developer.ID,
			CategoryID:        category.ID,
			Title:             p.Title,
			Tagline:           p.Tagline,
			Description:       p.Description,
			Problem:           p.Problem,
			Solution:          p.Solution,
			Traction:          p.Traction,
			MinimumInvestment: p.MinInvestment,
			MaximumInvestment: p.MaxInvestment,
			ValuationCap:      p.ValuationCap,
			Status:            models.ProjectStatusApproved,
			NDAConfig: &models.ProjectNDAConfig{
				RequireAddendum: p.Addendum != "",
				CustomClauses:   p.Addendum,
			},
			Team: []models.TeamMember{{Name: p.Lead, Title: "Founder & CEO", IsLead: true}},
		}
		if err := db.Create(project).Error; err != nil {
			return err
		}
	}

	logger.L().Info("seeded demo projects", zap.Int("count", len(demoProjects)))
	return nil
}

func demoDeveloper(db *gorm.DB) (*models.User, error) {
	var dev models.User
	err := db.Where("email = ?", demoDeveloperEmail).First(&dev).Error
	if err == nil {
		return &dev, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo12345"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	dev = models.User{
		Email:        demoDeveloperEmail,
		PasswordHash: string(hash),
		Role:         models.RoleDeveloper,
		FirstName:    "Demo",
		LastName:     "Founder",
		CompanyName:  "AngelMatch Demo Studio",
		IsActive:     true,
	}
	if err := db.Create(&dev).Error; err != nil {
		return nil, err
	}
	return &dev, nil
}
