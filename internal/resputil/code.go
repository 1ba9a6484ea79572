package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired ErrorCode = 40101
	TokenInvalid ErrorCode = 40102

	// Login
	InvalidCredentials ErrorCode = 40106

	// User is not allowed to access the resource
	UserNotAllowed ErrorCode = 40301

	// Unknown entity id
	NotFound ErrorCode = 40401

	// Workflow rejections, keyed one code per failure so the frontend
	// can toast the specific reason
	InvalidTransition   ErrorCode = 42201
	NotReviewable       ErrorCode = 42202
	DuplicateChapter    ErrorCode = 42203
	TeamNotReady        ErrorCode = 42204
	AlreadyInvited      ErrorCode = 42205
	AlreadyResolved     ErrorCode = 42206
	InsufficientMembers ErrorCode = 42207
	NoFeedback          ErrorCode = 42208
	TeamNotForming      ErrorCode = 42209
	AlreadyInTeam       ErrorCode = 42210
	TeamFull            ErrorCode = 42211
	ProjectExists       ErrorCode = 42212
	NoDocument          ErrorCode = 42213

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
