package store

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/raids-lab/capstone/dao/model"
)

// Migrate applies the schema migrations. The initial migration creates
// all workflow tables; later schema changes append new entries.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250301-init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.Team{},
					&model.TeamMembership{},
					&model.Project{},
					&model.ProjectMember{},
					&model.Chapter{},
					&model.ChapterVersion{},
					&model.FeedbackEntry{},
					&model.WorkflowLog{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					&model.WorkflowLog{},
					&model.FeedbackEntry{},
					&model.ChapterVersion{},
					&model.Chapter{},
					&model.ProjectMember{},
					&model.Project{},
					&model.TeamMembership{},
					&model.Team{},
					&model.User{},
				)
			},
		},
		{
			ID: "20250512-deadlines",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.Deadline{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&model.Deadline{})
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return err
	}
	klog.Info("migrations applied")
	return nil
}
