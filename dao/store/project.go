package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/raids-lab/capstone/dao/model"
)

// ErrTeamNotLocked is returned by CreateWithTeamLock when the owning
// team is not in locked state.
var ErrTeamNotLocked = errors.New("team is not locked")

type ProjectStore interface {
	// CreateWithTeamLock creates the project and its member snapshot in a
	// single transaction that holds a row lock on the team, so the
	// team-lock check and the insert commit atomically. A second creation
	// from the same team fails on the unique team index with
	// gorm.ErrDuplicatedKey.
	CreateWithTeamLock(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id uint) (*model.Project, error)
	GetByTeamID(ctx context.Context, teamID uint) (*model.Project, error)
	ListForUser(ctx context.Context, userID uint) ([]model.Project, error)
	ListForAdviser(ctx context.Context, adviserID uint) ([]model.Project, error)
	ListAll(ctx context.Context) ([]model.Project, error)
	// TransitionCAS commits a status transition guarded on the current
	// status and appends the workflow-log entry in the same transaction.
	// Returns false when the guard does not match.
	TransitionCAS(ctx context.Context, id uint, from, to model.ProjectStatus, entry *model.WorkflowLog) (bool, error)
	// AdvancePhaseCAS bumps capstone_phase from fromPhase to fromPhase+1.
	AdvancePhaseCAS(ctx context.Context, id uint, fromPhase int) (bool, error)
	ListWorkflowLog(ctx context.Context, projectID uint) ([]model.WorkflowLog, error)
	SetAdviser(ctx context.Context, id, adviserID uint) error
	// MutateCapstone4 applies mutate to the capstone4 payload under a row
	// lock, so concurrent read-merge-write cycles serialize and neither
	// overwrites the other. Returns the merged content.
	MutateCapstone4(ctx context.Context, id uint, mutate func(*model.Capstone4Content) error) (*model.Capstone4Content, error)
	UpdateDocument(ctx context.Context, id uint, fileID, webViewLink string) error
	UpdatePlagiarism(ctx context.Context, id uint, status model.PlagiarismStatus, score *float64) error
}

type projectStore struct {
	db *gorm.DB
}

func NewProjectStore(db *gorm.DB) ProjectStore {
	return &projectStore{db: db}
}

func (s *projectStore) CreateWithTeamLock(ctx context.Context, p *model.Project) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team model.Team
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&team, p.TeamID).Error; err != nil {
			return err
		}
		if team.Status != model.TeamStatusLocked {
			return ErrTeamNotLocked
		}

		if err := tx.Create(p).Error; err != nil {
			return err
		}

		var memberships []model.TeamMembership
		if err := tx.Where("team_id = ? AND status = ?", team.ID, model.MembershipStatusAccepted).
			Find(&memberships).Error; err != nil {
			return err
		}
		for i := range memberships {
			member := model.ProjectMember{ProjectID: p.ID, UserID: memberships[i].UserID}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *projectStore) preloaded(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Members").
		Preload("Members.User").
		Preload("Adviser").
		Preload("Team")
}

func (s *projectStore) GetByID(ctx context.Context, id uint) (*model.Project, error) {
	var p model.Project
	if err := s.preloaded(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectStore) GetByTeamID(ctx context.Context, teamID uint) (*model.Project, error) {
	var p model.Project
	if err := s.preloaded(ctx).Where("team_id = ?", teamID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectStore) ListForUser(ctx context.Context, userID uint) ([]model.Project, error) {
	var ps []model.Project
	err := s.preloaded(ctx).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.id").
		Find(&ps).Error
	return ps, err
}

func (s *projectStore) ListForAdviser(ctx context.Context, adviserID uint) ([]model.Project, error) {
	var ps []model.Project
	err := s.preloaded(ctx).Where("adviser_id = ?", adviserID).Order("id").Find(&ps).Error
	return ps, err
}

func (s *projectStore) ListAll(ctx context.Context) ([]model.Project, error) {
	var ps []model.Project
	err := s.preloaded(ctx).Order("id").Find(&ps).Error
	return ps, err
}

func (s *projectStore) TransitionCAS(ctx context.Context, id uint, from, to model.ProjectStatus,
	entry *model.WorkflowLog) (bool, error) {
	committed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Project{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		committed = true
		entry.ProjectID = id
		entry.FromStatus = from
		entry.ToStatus = to
		return tx.Create(entry).Error
	})
	return committed, err
}

func (s *projectStore) AdvancePhaseCAS(ctx context.Context, id uint, fromPhase int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ? AND capstone_phase = ?", id, fromPhase).
		Update("capstone_phase", fromPhase+1)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *projectStore) ListWorkflowLog(ctx context.Context, projectID uint) ([]model.WorkflowLog, error) {
	var entries []model.WorkflowLog
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at, id").
		Find(&entries).Error
	return entries, err
}

func (s *projectStore) SetAdviser(ctx context.Context, id, adviserID uint) error {
	return s.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).
		Update("adviser_id", adviserID).Error
}

func (s *projectStore) MutateCapstone4(ctx context.Context, id uint,
	mutate func(*model.Capstone4Content) error) (*model.Capstone4Content, error) {
	var content model.Capstone4Content
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, id).Error; err != nil {
			return err
		}
		content = p.Capstone4.Data()
		if err := mutate(&content); err != nil {
			return err
		}
		return tx.Model(&p).Update("capstone4", datatypes.NewJSONType(content)).Error
	})
	if err != nil {
		return nil, err
	}
	return &content, nil
}

func (s *projectStore) UpdateDocument(ctx context.Context, id uint, fileID, webViewLink string) error {
	return s.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).
		Updates(map[string]any{"document_file_id": fileID, "document_web_view_link": webViewLink}).Error
}

func (s *projectStore) UpdatePlagiarism(ctx context.Context, id uint,
	status model.PlagiarismStatus, score *float64) error {
	updates := map[string]any{"plagiarism_status": status}
	if status == model.PlagiarismStatusCompleted || status == model.PlagiarismStatusFailed {
		now := time.Now()
		updates["plagiarism_checked_at"] = &now
	}
	if score != nil {
		updates["plagiarism_score"] = score
	}
	return s.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).
		Updates(updates).Error
}
