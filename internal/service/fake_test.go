package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/pulse/internal/apperror"
	"github.com/sakif/pulse/internal/model"
	"github.com/sakif/pulse/internal/repository"
)

// fakeDb is an in-memory stand-in for the storage contract. It mirrors the
// real implementation's observable behavior (NotFound on misses, descending
// accumulation in TotalTimeBetween, summed delete counts) and can be forced
// to fail any single operation by name.
type fakeDb struct {
	users         map[string]string // username -> password
	apiTokens     map[string]*model.ApiToken
	accessTokens  map[string]string // token -> username
	refreshTokens map[string]refreshRecord
	heartbeats    []model.Heartbeat
	projects      map[string]map[string]bool     // username -> project set
	projectTags   map[string]map[string][]string // username -> project -> tags
	badgeLinks    map[string]*model.BadgeLink    // link id -> record

	// canned aggregation results
	statRows        []model.StatRow
	timelineRows    []model.TimelineRow
	projectStatRows []model.ProjectStatRow
	leaderboardRows []model.LeaderboardRow
	timeByProject   map[string]time.Duration
	timeToday       time.Duration

	// rangesSeen records what TotalTimeBetween actually received.
	rangesSeen []model.TimeRange

	nextID   int
	failWith map[string]error // op name -> injected error
}

var _ repository.Db = (*fakeDb)(nil)

type refreshRecord struct {
	username  string
	expiresAt time.Time
}

func newFakeDb() *fakeDb {
	return &fakeDb{
		users:         make(map[string]string),
		apiTokens:     make(map[string]*model.ApiToken),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]refreshRecord),
		projects:      make(map[string]map[string]bool),
		projectTags:   make(map[string]map[string][]string),
		badgeLinks:    make(map[string]*model.BadgeLink),
		timeByProject: make(map[string]time.Duration),
		failWith:      make(map[string]error),
	}
}

func (f *fakeDb) fail(op string) error {
	return f.failWith[op]
}

// addUser seeds a user together with an API token and returns the token.
func (f *fakeDb) addUser(username, password string) string {
	f.users[username] = password
	token := "api-token-" + username
	f.apiTokens[token] = &model.ApiToken{Token: token, Username: username}
	return token
}

func (f *fakeDb) addProject(username, project string) {
	if f.projects[username] == nil {
		f.projects[username] = make(map[string]bool)
	}
	f.projects[username][project] = true
}

func (f *fakeDb) ResolveApiToken(_ context.Context, token string) (string, error) {
	if err := f.fail("ResolveApiToken"); err != nil {
		return "", err
	}
	t, ok := f.apiTokens[token]
	if !ok {
		return "", apperror.NotFound("api token", token)
	}
	return t.Username, nil
}

func (f *fakeDb) ResolveRefreshToken(_ context.Context, token string) (string, error) {
	if err := f.fail("ResolveRefreshToken"); err != nil {
		return "", err
	}
	rec, ok := f.refreshTokens[token]
	if !ok || !rec.expiresAt.After(time.Now()) {
		return "", apperror.NotFound("refresh token", token)
	}
	return rec.username, nil
}

func (f *fakeDb) VerifyCredentials(_ context.Context, username, password string) (string, error) {
	if err := f.fail("VerifyCredentials"); err != nil {
		return "", err
	}
	stored, ok := f.users[username]
	if !ok || stored != password {
		return "", apperror.NotFound("user", username)
	}
	return username, nil
}

func (f *fakeDb) CreateUser(_ context.Context, user *model.User) error {
	if err := f.fail("CreateUser"); err != nil {
		return err
	}
	f.users[user.Username] = user.PasswordHash
	return nil
}

func (f *fakeDb) UserExists(_ context.Context, username string) (bool, error) {
	if err := f.fail("UserExists"); err != nil {
		return false, err
	}
	_, ok := f.users[username]
	return ok, nil
}

func (f *fakeDb) InsertHeartbeats(_ context.Context, beats []model.Heartbeat) ([]string, error) {
	if err := f.fail("InsertHeartbeats"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(beats))
	for _, b := range beats {
		f.nextID++
		b.ID = fmt.Sprintf("hb-%d", f.nextID)
		f.heartbeats = append(f.heartbeats, b)
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (f *fakeDb) TotalStats(_ context.Context, _ string, _, _ time.Time, _ int, _ string) ([]model.StatRow, error) {
	if err := f.fail("TotalStats"); err != nil {
		return nil, err
	}
	return f.statRows, nil
}

func (f *fakeDb) TimelineStats(_ context.Context, _ string, _, _ time.Time, _ int) ([]model.TimelineRow, error) {
	if err := f.fail("TimelineStats"); err != nil {
		return nil, err
	}
	return f.timelineRows, nil
}

func (f *fakeDb) ProjectStats(_ context.Context, _, _ string, _, _ time.Time, _ int) ([]model.ProjectStatRow, error) {
	if err := f.fail("ProjectStats"); err != nil {
		return nil, err
	}
	return f.projectStatRows, nil
}

func (f *fakeDb) TagStats(_ context.Context, _, _ string, _, _ time.Time, _ int) ([]model.StatRow, error) {
	if err := f.fail("TagStats"); err != nil {
		return nil, err
	}
	return f.statRows, nil
}

func (f *fakeDb) Leaderboards(_ context.Context, _, _ time.Time, _ int) ([]model.LeaderboardRow, error) {
	if err := f.fail("Leaderboards"); err != nil {
		return nil, err
	}
	return f.leaderboardRows, nil
}

// TotalTimeBetween prepends each range's result, mirroring the real
// implementation's newest-range-first accumulation.
func (f *fakeDb) TotalTimeBetween(_ context.Context, ranges []model.TimeRange) ([]time.Duration, error) {
	if err := f.fail("TotalTimeBetween"); err != nil {
		return nil, err
	}
	f.rangesSeen = append([]model.TimeRange(nil), ranges...)
	var out []time.Duration
	for _, r := range ranges {
		out = append([]time.Duration{f.timeByProject[r.Project]}, out...)
	}
	return out, nil
}

func (f *fakeDb) TotalTimeToday(_ context.Context, _ string) (time.Duration, error) {
	if err := f.fail("TotalTimeToday"); err != nil {
		return 0, err
	}
	return f.timeToday, nil
}

func (f *fakeDb) CreateTokenPair(_ context.Context, pair *model.TokenPair, username string) error {
	if err := f.fail("CreateTokenPair"); err != nil {
		return err
	}
	f.accessTokens[pair.AccessToken] = username
	f.refreshTokens[pair.RefreshToken] = refreshRecord{username: username, expiresAt: pair.RefreshExpiresAt}
	return nil
}

func (f *fakeDb) DeleteTokenPair(_ context.Context, accessToken, refreshToken string) (int64, error) {
	if err := f.fail("DeleteTokenPair"); err != nil {
		return 0, err
	}
	var deleted int64
	if _, ok := f.accessTokens[accessToken]; ok {
		delete(f.accessTokens, accessToken)
		deleted++
	}
	if _, ok := f.refreshTokens[refreshToken]; ok {
		delete(f.refreshTokens, refreshToken)
		deleted++
	}
	return deleted, nil
}

func (f *fakeDb) CreateApiToken(_ context.Context, token *model.ApiToken) error {
	if err := f.fail("CreateApiToken"); err != nil {
		return err
	}
	stored := *token
	f.apiTokens[token.Token] = &stored
	return nil
}

func (f *fakeDb) ListApiTokens(_ context.Context, username string) ([]model.ApiToken, error) {
	if err := f.fail("ListApiTokens"); err != nil {
		return nil, err
	}
	var out []model.ApiToken
	for _, t := range f.apiTokens {
		if t.Username == username {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeDb) DeleteApiToken(_ context.Context, token string) error {
	if err := f.fail("DeleteApiToken"); err != nil {
		return err
	}
	if _, ok := f.apiTokens[token]; !ok {
		return apperror.NotFound("api token", token)
	}
	delete(f.apiTokens, token)
	return nil
}

func (f *fakeDb) TouchApiToken(_ context.Context, token string, usedAt time.Time) error {
	if err := f.fail("TouchApiToken"); err != nil {
		return err
	}
	t, ok := f.apiTokens[token]
	if !ok {
		return apperror.NotFound("api token", token)
	}
	t.LastUsedAt = usedAt
	return nil
}

func (f *fakeDb) RenameApiToken(_ context.Context, token, name string) error {
	if err := f.fail("RenameApiToken"); err != nil {
		return err
	}
	t, ok := f.apiTokens[token]
	if !ok {
		return apperror.NotFound("api token", token)
	}
	t.Name = name
	return nil
}

func (f *fakeDb) SetTags(_ context.Context, username, project string, tags []string) error {
	if err := f.fail("SetTags"); err != nil {
		return err
	}
	if !f.projects[username][project] {
		return apperror.NotFound("project", project)
	}
	if f.projectTags[username] == nil {
		f.projectTags[username] = make(map[string][]string)
	}
	f.projectTags[username][project] = append([]string(nil), tags...)
	return nil
}

func (f *fakeDb) GetTags(_ context.Context, username, project string) ([]model.Tag, error) {
	if err := f.fail("GetTags"); err != nil {
		return nil, err
	}
	var out []model.Tag
	for _, name := range f.projectTags[username][project] {
		out = append(out, model.Tag{Owner: username, Name: name})
	}
	return out, nil
}

func (f *fakeDb) GetAllTags(_ context.Context, username string) ([]model.Tag, error) {
	if err := f.fail("GetAllTags"); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []model.Tag
	for _, tags := range f.projectTags[username] {
		for _, name := range tags {
			if !seen[name] {
				seen[name] = true
				out = append(out, model.Tag{Owner: username, Name: name})
			}
		}
	}
	return out, nil
}

func (f *fakeDb) GetAllProjects(_ context.Context, username string) ([]model.Project, error) {
	if err := f.fail("GetAllProjects"); err != nil {
		return nil, err
	}
	var out []model.Project
	for name := range f.projects[username] {
		out = append(out, model.Project{Owner: username, Name: name})
	}
	return out, nil
}

func (f *fakeDb) CheckProjectOwner(_ context.Context, username, project string) (bool, error) {
	if err := f.fail("CheckProjectOwner"); err != nil {
		return false, err
	}
	return f.projects[username][project], nil
}

func (f *fakeDb) CheckTagOwner(_ context.Context, username, tag string) (bool, error) {
	if err := f.fail("CheckTagOwner"); err != nil {
		return false, err
	}
	for _, tags := range f.projectTags[username] {
		for _, name := range tags {
			if name == tag {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeDb) CreateBadgeLink(_ context.Context, username, project string) (string, error) {
	if err := f.fail("CreateBadgeLink"); err != nil {
		return "", err
	}
	for id, link := range f.badgeLinks {
		if link.Username == username && link.Project == project {
			return id, nil
		}
	}
	f.nextID++
	id := fmt.Sprintf("link-%d", f.nextID)
	f.badgeLinks[id] = &model.BadgeLink{LinkID: id, Username: username, Project: project, CreatedAt: time.Now()}
	return id, nil
}

func (f *fakeDb) GetBadgeLinkInfo(_ context.Context, linkID string) (*model.BadgeLink, error) {
	if err := f.fail("GetBadgeLinkInfo"); err != nil {
		return nil, err
	}
	link, ok := f.badgeLinks[linkID]
	if !ok {
		return nil, apperror.NotFound("badge link", linkID)
	}
	out := *link
	return &out, nil
}

func (f *fakeDb) GetTotalActivityTime(_ context.Context, linkID string, _ int) (time.Duration, error) {
	if err := f.fail("GetTotalActivityTime"); err != nil {
		return 0, err
	}
	link, ok := f.badgeLinks[linkID]
	if !ok {
		return 0, apperror.NotFound("badge link", linkID)
	}
	return f.timeByProject[link.Project], nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
