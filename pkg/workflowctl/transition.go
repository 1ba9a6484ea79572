package workflowctl

import (
	"github.com/raids-lab/capstone/dao/model"
)

// Actor is the authenticated identity a gateway request acts as.
type Actor struct {
	ID   uint
	Name string
	Role model.Role
}

// requirement is the relation an actor must hold to a project for a
// transition to be legal.
type requirement uint8

const (
	requireMember requirement = iota + 1 // student member of the project
	requireAdviser
	requireCoordinator
)

func (r requirement) describe() string {
	switch r {
	case requireMember:
		return "project member"
	case requireAdviser:
		return "project adviser"
	case requireCoordinator:
		return "coordinator"
	}
	return "unknown"
}

type edge struct {
	to           model.ProjectStatus
	require      requirement
	precondition func(p *model.Project) *Error
}

func requireAssignedAdviser(p *model.Project) *Error {
	if p.AdviserID == nil {
		return Errorf(ReasonInvalidTransition, "project %d has no assigned adviser", p.ID)
	}
	return nil
}

func requireFinalDocuments(p *model.Project) *Error {
	content := p.Capstone4.Data()
	if !content.Complete() {
		return Errorf(ReasonInvalidTransition,
			"project %d is missing final-stage documents (academic and journal versions required)", p.ID)
	}
	return nil
}

// projectEdges is the legal transition table. Any transition not listed
// here fails with InvalidTransition.
var projectEdges = map[model.ProjectStatus][]edge{
	model.ProjectStatusProposed: {
		{to: model.ProjectStatusAdviserReview, require: requireMember, precondition: requireAssignedAdviser},
	},
	model.ProjectStatusRevisionRequired: {
		{to: model.ProjectStatusAdviserReview, require: requireMember, precondition: requireAssignedAdviser},
	},
	model.ProjectStatusAdviserReview: {
		{to: model.ProjectStatusRevisionRequired, require: requireAdviser},
		{to: model.ProjectStatusApprovedForDefense, require: requireAdviser},
	},
	model.ProjectStatusApprovedForDefense: {
		{to: model.ProjectStatusFinalSubmitted, require: requireMember, precondition: requireFinalDocuments},
	},
	model.ProjectStatusFinalSubmitted: {
		{to: model.ProjectStatusArchived, require: requireCoordinator},
	},
}

// validateTransition checks the transition table, the actor's relation
// to the project, and the edge precondition. It never writes.
func validateTransition(p *model.Project, to model.ProjectStatus, actor Actor) *Error {
	var target *edge
	for i := range projectEdges[p.Status] {
		if projectEdges[p.Status][i].to == to {
			target = &projectEdges[p.Status][i]
			break
		}
	}
	if target == nil {
		return Errorf(ReasonInvalidTransition,
			"no legal transition from %s to %s", p.Status, to)
	}

	allowed := false
	switch target.require {
	case requireMember:
		allowed = p.HasMember(actor.ID)
	case requireAdviser:
		allowed = p.IsAdviser(actor.ID)
	case requireCoordinator:
		allowed = actor.Role == model.RoleCoordinator
	}
	if !allowed {
		return Errorf(ReasonInvalidTransition,
			"transition %s to %s requires role %s", p.Status, to, target.require.describe())
	}

	if target.precondition != nil {
		if err := target.precondition(p); err != nil {
			return err
		}
	}
	return nil
}

// KnownProjectStatus reports whether s is a defined project status.
// The gateway rejects unknown status strings before dispatch.
func KnownProjectStatus(s model.ProjectStatus) bool {
	switch s {
	case model.ProjectStatusProposed, model.ProjectStatusAdviserReview,
		model.ProjectStatusRevisionRequired, model.ProjectStatusApprovedForDefense,
		model.ProjectStatusFinalSubmitted, model.ProjectStatusArchived:
		return true
	}
	return false
}
