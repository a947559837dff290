package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cmlabs-hris/attendance-core/internal/domain/ruleset"
	"github.com/cmlabs-hris/attendance-core/internal/domain/settings"
	"github.com/cmlabs-hris/attendance-core/internal/domain/user"
)

type ruleSetRepository struct{ s *Store }

func (s *Store) RuleSets() ruleset.Repository { return &ruleSetRepository{s: s} }

func (r *ruleSetRepository) Latest(ctx context.Context, orgID string) (ruleset.Stored, error) {
	var out ruleset.Stored
	found := false
	err := r.s.read(func(st *state) error {
		for _, rs := range st.ruleSets {
			if rs.OrgID == orgID && (!found || rs.Version > out.Version) {
				out, found = rs, true
			}
		}
		if !found {
			return ruleset.ErrRuleSetNotFound
		}
		return nil
	})
	return out, err
}

func (r *ruleSetRepository) Create(ctx context.Context, rs ruleset.Stored) error {
	return r.s.write(ctx, func(st *state) error {
		for _, existing := range st.ruleSets {
			if existing.OrgID == rs.OrgID && existing.Version == rs.Version {
				return ruleset.ErrVersionConflict
			}
		}
		if rs.ID == "" {
			rs.ID = uuid.New().String()
		}
		rs.CreatedAt = r.s.now()
		st.ruleSets = append(st.ruleSets, rs)
		return nil
	})
}

type settingsRepository struct{ s *Store }

func (s *Store) Settings() settings.Repository { return &settingsRepository{s: s} }

func (r *settingsRepository) Get(ctx context.Context, orgID string) (settings.Settings, error) {
	var out settings.Settings
	err := r.s.read(func(st *state) error {
		s, ok := st.settings[orgID]
		if !ok {
			return settings.ErrSettingsNotFound
		}
		out = s
		return nil
	})
	return out, err
}

func (r *settingsRepository) Save(ctx context.Context, s settings.Settings) error {
	return r.s.write(ctx, func(st *state) error {
		st.settings[s.OrgID] = s
		return nil
	})
}

type memberRepository struct{ s *Store }

func (s *Store) Members() user.MemberRepository { return &memberRepository{s: s} }

func (r *memberRepository) Upsert(ctx context.Context, m user.Member) error {
	return r.s.write(ctx, func(st *state) error {
		k := memberKey{orgID: m.OrgID, userID: m.UserID}
		if existing, ok := st.members[k]; ok {
			m.CreatedAt = existing.CreatedAt
		} else {
			m.CreatedAt = r.s.now()
		}
		m.Profile = copyMap(m.Profile)
		st.members[k] = m
		return nil
	})
}

func (r *memberRepository) Get(ctx context.Context, orgID, userID string) (user.Member, error) {
	var out user.Member
	err := r.s.read(func(st *state) error {
		m, ok := st.members[memberKey{orgID: orgID, userID: userID}]
		if !ok {
			return user.ErrMemberNotFound
		}
		out = m
		out.Profile = copyMap(m.Profile)
		return nil
	})
	return out, err
}

func (r *memberRepository) ListActive(ctx context.Context, orgID string) ([]user.Member, error) {
	var out []user.Member
	err := r.s.read(func(st *state) error {
		for _, m := range st.members {
			if m.OrgID == orgID && m.Active {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, err
}

func (r *memberRepository) ListOrgIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	err := r.s.read(func(st *state) error {
		for k := range st.members {
			if !seen[k.orgID] {
				seen[k.orgID] = true
				out = append(out, k.orgID)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

type JobRunRepository struct{ s *Store }

// JobRuns exposes the run-marker table used by background jobs.
func (s *Store) JobRuns() *JobRunRepository { return &JobRunRepository{s: s} }

// Claim records (job, runKey) and reports whether it was not claimed before.
func (r *JobRunRepository) Claim(ctx context.Context, job, runKey string) (bool, error) {
	claimed := false
	err := r.s.write(ctx, func(st *state) error {
		k := job + "/" + runKey
		if _, ok := st.jobRuns[k]; ok {
			return nil
		}
		st.jobRuns[k] = r.s.now()
		claimed = true
		return nil
	})
	return claimed, err
}
