package workflowctl

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
)

// In-memory store fakes honoring the same contracts as the gorm
// implementations: sentinel errors, duplicate-key errors, and CAS
// semantics. All of them are safe for concurrent use so the race tests
// can hammer them from multiple goroutines.

type fakeTeamStore struct {
	mu          sync.Mutex
	nextID      uint
	teams       map[uint]*model.Team
	memberships map[uint]*model.TeamMembership
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{
		teams:       make(map[uint]*model.Team),
		memberships: make(map[uint]*model.TeamMembership),
	}
}

func (s *fakeTeamStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *fakeTeamStore) Create(_ context.Context, team *model.Team, leader *model.TeamMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team.ID = s.id()
	t := *team
	s.teams[team.ID] = &t
	leader.ID = s.id()
	leader.TeamID = team.ID
	m := *leader
	s.memberships[leader.ID] = &m
	return nil
}

func (s *fakeTeamStore) GetByID(_ context.Context, id uint) (*model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *t
	out.Memberships = nil
	for _, m := range s.memberships {
		if m.TeamID == id {
			out.Memberships = append(out.Memberships, *m)
		}
	}
	sort.Slice(out.Memberships, func(i, j int) bool {
		return out.Memberships[i].ID < out.Memberships[j].ID
	})
	return &out, nil
}

func (s *fakeTeamStore) GetMembershipByID(_ context.Context, id uint) (*model.TeamMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *m
	if t, ok := s.teams[m.TeamID]; ok {
		out.Team = *t
	}
	return &out, nil
}

func (s *fakeTeamStore) ActiveMembershipForUser(_ context.Context, userID uint) (*model.TeamMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.UserID != userID || m.Status != model.MembershipStatusAccepted {
			continue
		}
		t, ok := s.teams[m.TeamID]
		if !ok {
			continue
		}
		if t.Status == model.TeamStatusForming || t.Status == model.TeamStatusLocked {
			out := *m
			out.Team = *t
			return &out, nil
		}
	}
	return nil, nil
}

func (s *fakeTeamStore) PendingInvitationsForUser(_ context.Context, userID uint) ([]model.TeamMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TeamMembership
	for _, m := range s.memberships {
		if m.UserID == userID && m.Status == model.MembershipStatusPending {
			c := *m
			if t, ok := s.teams[m.TeamID]; ok {
				c.Team = *t
			}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeTeamStore) CreateMembership(_ context.Context, m *model.TeamMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships {
		if existing.TeamID == m.TeamID && existing.UserID == m.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.ID = s.id()
	c := *m
	s.memberships[m.ID] = &c
	return nil
}

func (s *fakeTeamStore) ResolveMembershipCAS(_ context.Context, id uint, to model.MembershipStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok || m.Status != model.MembershipStatusPending {
		return false, nil
	}
	now := time.Now()
	m.Status = to
	m.RespondedAt = &now
	return true, nil
}

func (s *fakeTeamStore) ReopenDeclined(_ context.Context, id, invitedBy uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok || m.Status != model.MembershipStatusDeclined {
		return false, nil
	}
	m.Status = model.MembershipStatusPending
	m.InvitedByID = invitedBy
	m.RespondedAt = nil
	return true, nil
}

func (s *fakeTeamStore) CountAccepted(_ context.Context, teamID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.memberships {
		if m.TeamID == teamID && m.Status == model.MembershipStatusAccepted {
			n++
		}
	}
	return n, nil
}

func (s *fakeTeamStore) TeamStatusCAS(_ context.Context, id uint, from, to model.TeamStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

type fakeProjectStore struct {
	mu       sync.Mutex
	nextID   uint
	teams    *fakeTeamStore
	projects map[uint]*model.Project
	logs     map[uint][]model.WorkflowLog
}

func newFakeProjectStore(teams *fakeTeamStore) *fakeProjectStore {
	return &fakeProjectStore{
		teams:    teams,
		projects: make(map[uint]*model.Project),
		logs:     make(map[uint][]model.WorkflowLog),
	}
}

func (s *fakeProjectStore) CreateWithTeamLock(ctx context.Context, p *model.Project) error {
	team, err := s.teams.GetByID(ctx, p.TeamID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if team.Status != model.TeamStatusLocked {
		return store.ErrTeamNotLocked
	}
	for _, existing := range s.projects {
		if existing.TeamID == p.TeamID {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextID++
	p.ID = s.nextID
	for i := range team.Memberships {
		m := &team.Memberships[i]
		if m.Status == model.MembershipStatusAccepted {
			p.Members = append(p.Members, model.ProjectMember{ProjectID: p.ID, UserID: m.UserID})
		}
	}
	c := clone(p)
	s.projects[p.ID] = c
	return nil
}

func clone(p *model.Project) *model.Project {
	c := *p
	c.Members = append([]model.ProjectMember(nil), p.Members...)
	return &c
}

func (s *fakeProjectStore) GetByID(_ context.Context, id uint) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := clone(p)
	if t, terr := s.teams.GetByID(context.Background(), p.TeamID); terr == nil {
		out.Team = *t
	}
	return out, nil
}

func (s *fakeProjectStore) GetByTeamID(_ context.Context, teamID uint) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.TeamID == teamID {
			return clone(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeProjectStore) ListForUser(_ context.Context, userID uint) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Project
	for _, p := range s.projects {
		if p.HasMember(userID) {
			out = append(out, *clone(p))
		}
	}
	return out, nil
}

func (s *fakeProjectStore) ListForAdviser(_ context.Context, adviserID uint) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Project
	for _, p := range s.projects {
		if p.IsAdviser(adviserID) {
			out = append(out, *clone(p))
		}
	}
	return out, nil
}

func (s *fakeProjectStore) ListAll(_ context.Context) ([]model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Project
	for _, p := range s.projects {
		out = append(out, *clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeProjectStore) TransitionCAS(_ context.Context, id uint,
	from, to model.ProjectStatus, entry *model.WorkflowLog) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	e := *entry
	e.ProjectID = id
	e.FromStatus = from
	e.ToStatus = to
	e.CreatedAt = time.Now()
	s.logs[id] = append(s.logs[id], e)
	return true, nil
}

func (s *fakeProjectStore) AdvancePhaseCAS(_ context.Context, id uint, fromPhase int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.CapstonePhase != fromPhase {
		return false, nil
	}
	p.CapstonePhase = fromPhase + 1
	return true, nil
}

func (s *fakeProjectStore) ListWorkflowLog(_ context.Context, projectID uint) ([]model.WorkflowLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.WorkflowLog(nil), s.logs[projectID]...), nil
}

func (s *fakeProjectStore) SetAdviser(_ context.Context, id, adviserID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.AdviserID = &adviserID
	return nil
}

func (s *fakeProjectStore) MutateCapstone4(_ context.Context, id uint,
	mutate func(*model.Capstone4Content) error) (*model.Capstone4Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	content := p.Capstone4.Data()
	if err := mutate(&content); err != nil {
		return nil, err
	}
	p.Capstone4 = datatypes.NewJSONType(content)
	return &content, nil
}

func (s *fakeProjectStore) UpdateDocument(_ context.Context, id uint, fileID, webViewLink string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.DocumentFileID = fileID
	p.DocumentWebViewLink = webViewLink
	return nil
}

func (s *fakeProjectStore) UpdatePlagiarism(_ context.Context, id uint,
	status model.PlagiarismStatus, score *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.PlagiarismStatus = status
	p.PlagiarismScore = score
	if status == model.PlagiarismStatusCompleted || status == model.PlagiarismStatusFailed {
		now := time.Now()
		p.PlagiarismCheckedAt = &now
	}
	return nil
}

type fakeChapterStore struct {
	mu       sync.Mutex
	nextID   uint
	chapters map[uint]*model.Chapter
}

func newFakeChapterStore() *fakeChapterStore {
	return &fakeChapterStore{chapters: make(map[uint]*model.Chapter)}
}

func cloneChapter(ch *model.Chapter) *model.Chapter {
	c := *ch
	c.Versions = append([]model.ChapterVersion(nil), ch.Versions...)
	c.Feedback = append([]model.FeedbackEntry(nil), ch.Feedback...)
	return &c
}

func (s *fakeChapterStore) Create(_ context.Context, ch *model.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.chapters {
		if existing.ProjectID == ch.ProjectID &&
			existing.CapstonePhase == ch.CapstonePhase &&
			existing.ChapterNumber == ch.ChapterNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextID++
	ch.ID = s.nextID
	s.chapters[ch.ID] = cloneChapter(ch)
	return nil
}

func (s *fakeChapterStore) GetByID(_ context.Context, id uint) (*model.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneChapter(ch), nil
}

func (s *fakeChapterStore) ListByProject(_ context.Context, projectID uint) ([]model.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Chapter
	for _, ch := range s.chapters {
		if ch.ProjectID == projectID {
			out = append(out, *cloneChapter(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapstonePhase != out[j].CapstonePhase {
			return out[i].CapstonePhase < out[j].CapstonePhase
		}
		return out[i].ChapterNumber < out[j].ChapterNumber
	})
	return out, nil
}

func (s *fakeChapterStore) AppendVersion(_ context.Context, chapterID uint,
	fileID, webViewLink string, resubmitFrom []model.ChapterStatus,
	to model.ChapterStatus) (*model.ChapterVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[chapterID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	v := model.ChapterVersion{
		ChapterID:   chapterID,
		Seq:         len(ch.Versions) + 1,
		FileID:      fileID,
		WebViewLink: webViewLink,
		UploadedAt:  time.Now(),
	}
	ch.Versions = append(ch.Versions, v)
	for _, from := range resubmitFrom {
		if ch.Status == from {
			ch.Status = to
			break
		}
	}
	return &v, nil
}

func (s *fakeChapterStore) ReviewCAS(_ context.Context, chapterID uint,
	to model.ChapterStatus, fb *model.FeedbackEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chapters[chapterID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if ch.Status != model.ChapterStatusSubmitted {
		return false, nil
	}
	ch.Status = to
	fb.ChapterID = chapterID
	fb.Seq = len(ch.Feedback) + 1
	ch.Feedback = append(ch.Feedback, *fb)
	return true, nil
}
