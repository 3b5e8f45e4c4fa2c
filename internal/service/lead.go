package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/enum"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrLeadNotFound = errors.New("lead not found")

// freeMailDomains never count as a shared company domain.
var freeMailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"me.com":         true,
	"aol.com":        true,
	"proton.me":      true,
	"protonmail.com": true,
}

// EmailDomain returns the lower-cased domain of an address, or "" when the
// address has none.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// CompanyDomain is EmailDomain with free-mail providers filtered out.
func CompanyDomain(email string) string {
	d := EmailDomain(email)
	if freeMailDomains[d] {
		return ""
	}
	return d
}

type LeadStore interface {
	GetLeadByID(ctx context.Context, id uuid.UUID) (database.Lead, error)
	ListAllLeads(ctx context.Context) ([]database.Lead, error)
	ListLeadsByEmailDomain(ctx context.Context, arg database.ListLeadsByEmailDomainParams) ([]database.Lead, error)
}

type LeadService struct {
	store LeadStore
}

func NewLeadService(store LeadStore) *LeadService {
	return &LeadService{store: store}
}

// BoardColumn is one kanban column.
type BoardColumn struct {
	Status string          `json:"status"`
	Leads  []database.Lead `json:"leads"`
}

// Board groups every lead into the fixed board columns. Leads with a status
// outside the board are dropped.
func (s *LeadService) Board(ctx context.Context) ([]BoardColumn, error) {
	leads, err := s.store.ListAllLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return GroupBoard(leads), nil
}

func GroupBoard(leads []database.Lead) []BoardColumn {
	index := make(map[string]int, len(enum.LeadBoardColumns))
	cols := make([]BoardColumn, len(enum.LeadBoardColumns))
	for i, status := range enum.LeadBoardColumns {
		index[status] = i
		cols[i] = BoardColumn{Status: status, Leads: []database.Lead{}}
	}
	for _, l := range leads {
		if i, ok := index[l.Status]; ok {
			cols[i].Leads = append(cols[i].Leads, l)
		}
	}
	return cols
}

// Duplicates returns other leads sharing the lead's company email domain.
func (s *LeadService) Duplicates(ctx context.Context, id uuid.UUID) ([]database.Lead, error) {
	lead, err := s.store.GetLeadByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return s.DuplicatesOf(ctx, lead.Email, &lead.ID)
}

// DuplicatesOf finds leads whose email shares a company domain with email.
// exclude, if set, is left out of the result.
func (s *LeadService) DuplicatesOf(ctx context.Context, email string, exclude *uuid.UUID) ([]database.Lead, error) {
	domain := CompanyDomain(email)
	if domain == "" {
		return []database.Lead{}, nil
	}
	leads, err := s.store.ListLeadsByEmailDomain(ctx, database.ListLeadsByEmailDomainParams{
		Domain:    domain,
		ExcludeID: optUUID(exclude),
	})
	if err != nil {
		return nil, fmt.Errorf("list leads by domain: %w", err)
	}
	if leads == nil {
		leads = []database.Lead{}
	}
	return leads, nil
}

type leadRow struct {
	ID          string `csv:"id"`
	CompanyName string `csv:"company_name"`
	ContactName string `csv:"contact_name"`
	Email       string `csv:"email"`
	Phone       string `csv:"phone"`
	Source      string `csv:"source"`
	Status      string `csv:"status"`
	Notes       string `csv:"notes"`
	CreatedAt   string `csv:"created_at"`
}

// ExportCSV renders every lead as CSV with a header row.
func (s *LeadService) ExportCSV(ctx context.Context) ([]byte, error) {
	leads, err := s.store.ListAllLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	rows := make([]leadRow, 0, len(leads))
	for _, l := range leads {
		rows = append(rows, leadRow{
			ID:          l.ID.String(),
			CompanyName: l.CompanyName,
			ContactName: l.ContactName,
			Email:       l.Email,
			Phone:       textOrEmpty(l.Phone),
			Source:      textOrEmpty(l.Source),
			Status:      l.Status,
			Notes:       textOrEmpty(l.Notes),
			CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	var buf bytes.Buffer
	if len(rows) == 0 {
		header, err := gocsv.MarshalString([]leadRow{{}})
		if err != nil {
			return nil, fmt.Errorf("marshal csv: %w", err)
		}
		// keep only the header line
		if i := strings.IndexByte(header, '\n'); i >= 0 {
			header = header[:i+1]
		}
		buf.WriteString(header)
		return buf.Bytes(), nil
	}
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return buf.Bytes(), nil
}

func textOrEmpty(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
