package user

import "context"

type MemberRepository interface {
	Upsert(ctx context.Context, member Member) error
	Get(ctx context.Context, orgID, userID string) (Member, error)
	ListActive(ctx context.Context, orgID string) ([]Member, error)
	ListOrgIDs(ctx context.Context) ([]string, error)
}
