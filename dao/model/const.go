// Constants that map to database columns.
// Gin binding rejects zero values for fields tagged `required`, so numeric
// enums start at iota + 1 to keep the zero value out of the legal range.
package model

// User role in platform
type Role uint8

const (
	RoleStudent     Role = iota + 1 // Capstone student, team member or leader
	RoleAdviser                     // Faculty adviser, reviews chapters and status transitions
	RolePanelist                    // Defense panelist, records verdicts
	RoleCoordinator                 // Program coordinator, archives projects and manages policy
)

// User account status
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// Project lifecycle status, owned by the lifecycle engine.
// Transitions outside the legal edge set are rejected.
type ProjectStatus string

const (
	ProjectStatusProposed           ProjectStatus = "Proposed"
	ProjectStatusAdviserReview      ProjectStatus = "AdviserReview"
	ProjectStatusRevisionRequired   ProjectStatus = "RevisionRequired"
	ProjectStatusApprovedForDefense ProjectStatus = "ApprovedForDefense"
	ProjectStatusFinalSubmitted     ProjectStatus = "FinalSubmitted"
	ProjectStatusArchived           ProjectStatus = "Archived" // terminal
)

// Chapter status inside a phase
type ChapterStatus string

const (
	ChapterStatusDraft            ChapterStatus = "draft" // initial, zero versions
	ChapterStatusSubmitted        ChapterStatus = "submitted"
	ChapterStatusApproved         ChapterStatus = "approved"
	ChapterStatusRevisionRequired ChapterStatus = "revision_required"
)

// Adviser review decision recorded in a feedback entry
type ReviewDecision string

const (
	ReviewDecisionApproved         ReviewDecision = "approved"
	ReviewDecisionRevisionRequired ReviewDecision = "revision_required"
)

// Team status
type TeamStatus string

const (
	TeamStatusForming   TeamStatus = "forming"
	TeamStatusLocked    TeamStatus = "locked"    // membership frozen, precondition for project creation
	TeamStatusDissolved TeamStatus = "dissolved" // kept for audit, never deleted
)

// Membership role inside a team
type MembershipRole string

const (
	MembershipRoleLeader MembershipRole = "leader"
	MembershipRoleMember MembershipRole = "member"
)

// Membership status; a pending membership is an open invitation
type MembershipStatus string

const (
	MembershipStatusPending  MembershipStatus = "pending"
	MembershipStatusAccepted MembershipStatus = "accepted"
	MembershipStatusDeclined MembershipStatus = "declined"
)

// Similarity check status reported by the external checker
type PlagiarismStatus string

const (
	PlagiarismStatusNone      PlagiarismStatus = "none"
	PlagiarismStatusPending   PlagiarismStatus = "pending"
	PlagiarismStatusCompleted PlagiarismStatus = "completed"
	PlagiarismStatusFailed    PlagiarismStatus = "failed"
)

// Defense verdict recorded in the capstone 4 stage
type DefenseVerdict string

const (
	DefenseVerdictPending   DefenseVerdict = "pending"
	DefenseVerdictPassed    DefenseVerdict = "passed"
	DefenseVerdictRedefense DefenseVerdict = "redefense"
	DefenseVerdictFailed    DefenseVerdict = "failed"
)
