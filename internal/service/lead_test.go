package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLeadStore struct {
	leads     []database.Lead
	domainArg database.ListLeadsByEmailDomainParams
	domainHit []database.Lead
}

func (m *mockLeadStore) GetLeadByID(ctx context.Context, id uuid.UUID) (database.Lead, error) {
	for _, l := range m.leads {
		if l.ID == id {
			return l, nil
		}
	}
	return database.Lead{}, pgx.ErrNoRows
}

func (m *mockLeadStore) ListAllLeads(ctx context.Context) ([]database.Lead, error) {
	return m.leads, nil
}

func (m *mockLeadStore) ListLeadsByEmailDomain(ctx context.Context, arg database.ListLeadsByEmailDomainParams) ([]database.Lead, error) {
	m.domainArg = arg
	return m.domainHit, nil
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "acme.io", EmailDomain("Dana@ACME.io"))
	assert.Equal(t, "", EmailDomain("dana"))
	assert.Equal(t, "", EmailDomain("dana@"))
	assert.Equal(t, "", CompanyDomain("someone@gmail.com"))
	assert.Equal(t, "acme.io", CompanyDomain("dana@acme.io"))
}

func TestGroupBoard(t *testing.T) {
	leads := []database.Lead{
		{ID: uuid.New(), Status: enum.LeadStatusWon},
		{ID: uuid.New(), Status: enum.LeadStatusNew},
		{ID: uuid.New(), Status: "archived"},
		{ID: uuid.New(), Status: enum.LeadStatusNew},
	}

	cols := GroupBoard(leads)
	require.Len(t, cols, len(enum.LeadBoardColumns))
	for i, status := range enum.LeadBoardColumns {
		assert.Equal(t, status, cols[i].Status)
		assert.NotNil(t, cols[i].Leads)
	}
	assert.Len(t, cols[0].Leads, 2)
	assert.Len(t, cols[4].Leads, 1)
	assert.Empty(t, cols[1].Leads)
}

func TestDuplicates(t *testing.T) {
	lead := database.Lead{ID: uuid.New(), Email: "dana@Acme.io"}
	other := database.Lead{ID: uuid.New(), Email: "sam@acme.io"}
	store := &mockLeadStore{leads: []database.Lead{lead}, domainHit: []database.Lead{other}}
	svc := NewLeadService(store)

	dups, err := svc.Duplicates(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, []database.Lead{other}, dups)
	assert.Equal(t, "acme.io", store.domainArg.Domain)
	assert.Equal(t, pgtype.UUID{Bytes: lead.ID, Valid: true}, store.domainArg.ExcludeID)
}

func TestDuplicates_FreeMailNeverMatches(t *testing.T) {
	lead := database.Lead{ID: uuid.New(), Email: "dana@gmail.com"}
	store := &mockLeadStore{leads: []database.Lead{lead}, domainHit: []database.Lead{{ID: uuid.New()}}}
	svc := NewLeadService(store)

	dups, err := svc.Duplicates(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Empty(t, dups)
	assert.Equal(t, "", store.domainArg.Domain, "store should not be queried")
}

func TestDuplicates_NotFound(t *testing.T) {
	svc := NewLeadService(&mockLeadStore{})
	_, err := svc.Duplicates(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestExportCSV(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	store := &mockLeadStore{leads: []database.Lead{{
		ID:          uuid.MustParse("7b1f9a52-8f6e-4a57-9d0c-2f1d5d3a9e11"),
		CompanyName: "Acme, Inc.",
		ContactName: "Dana Reyes",
		Email:       "dana@acme.io",
		Source:      pgtype.Text{String: "referral", Valid: true},
		Status:      enum.LeadStatusQualified,
		CreatedAt:   created,
	}}}

	out, err := NewLeadService(store).ExportCSV(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,company_name,contact_name,email,phone,source,status,notes,created_at", lines[0])
	assert.Equal(t, `7b1f9a52-8f6e-4a57-9d0c-2f1d5d3a9e11,"Acme, Inc.",Dana Reyes,dana@acme.io,,referral,qualified,,2026-03-02T09:30:00Z`, lines[1])
}

func TestExportCSV_Empty(t *testing.T) {
	out, err := NewLeadService(&mockLeadStore{}).ExportCSV(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id,company_name,contact_name,email,phone,source,status,notes,created_at\n", string(out))
}
