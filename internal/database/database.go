package database

import (
	"github.com/glebarez/sqlite"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/logger"
	"github.com/ukuvago/angelmatch/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the configured database, migrates it and seeds reference data.
func Initialize(cfg *config.Config) error {
	db, err := Open(cfg.DatabaseType, cfg.DatabaseURL, gormLogLevel(cfg.LogLevel))
	if err != nil {
		return err
	}

	DB = db
	logger.L().Info("database connected", zap.String("type", cfg.DatabaseType))

	if err := Migrate(DB); err != nil {
		return err
	}

	if err := seedCategories(DB); err != nil {
		logger.L().Warn("seed categories failed", zap.Error(err))
	}
	if cfg.SeedDemo {
		if err := SeedProjects(DB); err != nil {
			logger.L().Warn("seed projects failed", zap.Error(err))
		}
	}

	return nil
}

// Open connects to postgres or sqlite without touching the schema.
func Open(dbType, dsn string, level gormlogger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Project{},
		&models.ProjectImage{},
		&models.TeamMember{},
		&models.ProjectNDAConfig{},
		&models.MasterNDA{},
		&models.ProjectNDASignature{},
		&models.Payment{},
		&models.PaymentPackage{},
		&models.ProjectUnlock{},
		&models.SAFENote{},
		&models.Commission{},
		&models.MeetingRequest{},
		&models.Message{},
		&models.AuditLog{},
	)
}

func seedCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	categories := []models.Category{
		{Name: "FinTech", Description: "Financial technology and banking innovations", Icon: "💰"},
		{Name: "HealthTech", Description: "Healthcare and medical technology", Icon: "🏥"},
		{Name: "EdTech", Description: "Education technology and e-learning", Icon: "📚"},
		{Name: "AgriTech", Description: "Agricultural technology and farming innovations", Icon: "🌾"},
		{Name: "CleanTech", Description: "Environmental and sustainability solutions", Icon: "🌱"},
		{Name: "PropTech", Description: "Real estate and property technology", Icon: "🏠"},
		{Name: "E-Commerce", Description: "Online retail and marketplace solutions", Icon: "🛒"},
		{Name: "SaaS", Description: "Software as a Service platforms", Icon: "☁️"},
		{Name: "AI/ML", Description: "Artificial intelligence and machine learning", Icon: "🤖"},
		{Name: "Logistics", Description: "Supply chain and delivery solutions", Icon: "🚚"},
	}
	if err := db.Create(&categories).Error; err != nil {
		return err
	}
	logger.L().Info("seeded categories", zap.Int("count", len(categories)))
	return nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

func GetDB() *gorm.DB {
	return DB
}
