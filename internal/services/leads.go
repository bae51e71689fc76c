package services

import (
	"context"
	"strings"
	"time"

	"automatch/internal/db"
	"automatch/internal/matching"
	"automatch/internal/metrics"
	"automatch/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type LeadService struct {
	txRunner db.TxRunner
	leads    LeadStore
	dealers  DealerStore
	ledger   LedgerStore
	audit    AuditStore
	now      func() time.Time
}

func NewLeadService(txRunner db.TxRunner, leads LeadStore, dealers DealerStore, ledger LedgerStore, audit AuditStore) *LeadService {
	return &LeadService{
		txRunner: txRunner,
		leads:    leads,
		dealers:  dealers,
		ledger:   ledger,
		audit:    audit,
		now:      time.Now,
	}
}

// LeadInput is what a buyer submits through the intent form.
type LeadInput struct {
	Brands                 []string       `json:"brands" validate:"required,min=1,dive,required"`
	Models                 []string       `json:"models" validate:"dive,required"`
	YearMin                int            `json:"year_min" validate:"required,gte=1900"`
	YearMax                int            `json:"year_max" validate:"required,gtefield=YearMin"`
	KmMax                  int            `json:"km_max" validate:"gte=0"`
	PriceMin               int64          `json:"price_min" validate:"gte=0"`
	PriceMax               int64          `json:"price_max" validate:"gtefield=PriceMin"`
	Urgency                models.Urgency `json:"urgency" validate:"required,oneof=urgent 15days 30days anytime"`
	BuyerName              string         `json:"buyer_name" validate:"required"`
	BuyerEmail             string         `json:"buyer_email" validate:"required,email"`
	BuyerPhone             string         `json:"buyer_phone" validate:"required"`
	Location               string         `json:"location" validate:"required"`
	AcceptsRemoteProposals bool           `json:"accepts_remote_proposals"`
}

// DealerLead is a lead as one dealer sees it.
type DealerLead struct {
	models.Lead
	UnlockedByDealer bool `json:"unlocked_by_dealer"`
}

func (s *LeadService) Submit(ctx context.Context, input LeadInput) (models.Lead, error) {
	input = trimLeadInput(input)
	if err := validate(input); err != nil {
		return models.Lead{}, err
	}
	lead := models.Lead{
		ID:                     uuid.NewString(),
		Brands:                 input.Brands,
		Models:                 input.Models,
		YearMin:                input.YearMin,
		YearMax:                input.YearMax,
		KmMax:                  input.KmMax,
		PriceMin:               input.PriceMin,
		PriceMax:               input.PriceMax,
		Urgency:                input.Urgency,
		BuyerName:              input.BuyerName,
		BuyerEmail:             input.BuyerEmail,
		BuyerPhone:             input.BuyerPhone,
		Location:               input.Location,
		AcceptsRemoteProposals: input.AcceptsRemoteProposals,
		Status:                 models.LeadStatusNew,
		CreatedAt:              s.now().UTC(),
	}
	if lead.Models == nil {
		lead.Models = []string{}
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.leads.Create(ctx, tx, lead); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, "", "lead.submit", "lead", lead.ID, auditData(map[string]any{
			"location": lead.Location,
			"urgency":  lead.Urgency,
		}))
	})
	if err != nil {
		return models.Lead{}, err
	}
	metrics.RecordLeadSubmitted()
	return lead, nil
}

// ListLeads returns every lead ordered by creation.
func (s *LeadService) ListLeads(ctx context.Context) ([]models.Lead, error) {
	leads, err := s.leads.List(ctx)
	if err != nil {
		return nil, err
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	return leads, nil
}

// ListForDealer applies the dealer's filters and hides buyer contact details
// on leads the dealer has not paid to unlock.
func (s *LeadService) ListForDealer(ctx context.Context, dealerID string, filter matching.Filter) ([]DealerLead, error) {
	dealer, err := s.dealers.GetByID(ctx, dealerID)
	if err != nil {
		return nil, translateNotFound(err, ErrUnknownDealer)
	}
	leads, err := s.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	unlockedIDs, err := s.ledger.UnlockedLeadIDs(ctx, dealer.ID)
	if err != nil {
		return nil, err
	}
	unlocked := make(map[string]struct{}, len(unlockedIDs))
	for _, id := range unlockedIDs {
		unlocked[id] = struct{}{}
	}

	visible := matching.ForDealer(leads, dealer.Region, filter)
	out := make([]DealerLead, 0, len(visible))
	for _, lead := range visible {
		_, ok := unlocked[lead.ID]
		if !ok {
			lead = lead.Redacted()
		}
		out = append(out, DealerLead{Lead: lead, UnlockedByDealer: ok})
	}
	return out, nil
}

func (s *LeadService) ListForAdmin(ctx context.Context, filter matching.AdminFilter) ([]models.Lead, error) {
	leads, err := s.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	return matching.ForAdmin(leads, filter), nil
}

func (s *LeadService) Get(ctx context.Context, leadID string) (models.Lead, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return models.Lead{}, translateNotFound(err, ErrLeadNotFound)
	}
	return lead, nil
}

// Delete removes a lead for good. Ledger entries referencing it are kept.
func (s *LeadService) Delete(ctx context.Context, actorID, leadID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.leads.Delete(ctx, tx, leadID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrLeadNotFound
		}
		return s.audit.Log(ctx, tx, actorID, "lead.delete", "lead", leadID, "")
	})
}

func trimLeadInput(input LeadInput) LeadInput {
	input.Brands = trimAll(input.Brands)
	input.Models = trimAll(input.Models)
	input.BuyerName = strings.TrimSpace(input.BuyerName)
	input.BuyerEmail = strings.TrimSpace(input.BuyerEmail)
	input.BuyerPhone = strings.TrimSpace(input.BuyerPhone)
	input.Location = strings.TrimSpace(input.Location)
	return input
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
