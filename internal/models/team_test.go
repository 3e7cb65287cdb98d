package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestReplaceTeamKeepsOrder(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&TeamMember{}))

	projectID := uuid.New()
	require.NoError(t, ReplaceTeam(db, projectID, []TeamMember{{Name: "Old", Title: "CTO"}}))
	require.NoError(t, ReplaceTeam(db, projectID, []TeamMember{
		{Name: "Ada", Title: "CEO", IsLead: true},
		{Name: "Grace", Title: "CTO"},
	}))

	var team []TeamMember
	require.NoError(t, OrderedTeam(db.Where("project_id = ?", projectID)).Find(&team).Error)
	require.Len(t, team, 2)
	assert.Equal(t, "Ada", team[0].Name)
	assert.Equal(t, 1, team[1].Position)
	assert.Equal(t, projectID, team[1].ProjectID)
}
