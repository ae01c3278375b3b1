package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"rifa-service/config"
	"rifa-service/internal/apperr"
	"rifa-service/internal/models"
	"rifa-service/internal/numberspace"
	"rifa-service/internal/redisclient"
	"rifa-service/internal/store"
	"rifa-service/internal/util"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 60
	maxPageSize     = 500
	randomRounds    = 20
	maxRandomPick   = 1000
)

// CatalogService provides the browsing views over the number space:
// paginated windows and randomized "pick N available" selection. It
// only reads; availability is always re-derived at reservation time.
type CatalogService struct {
	store    *store.Store
	redis    *redisclient.Client
	business config.BusinessConfig
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, redis *redisclient.Client, business config.BusinessConfig) *CatalogService {
	return &CatalogService{
		store:    store,
		redis:    redis,
		business: business,
		logger:   util.NamedLogger("catalog"),
	}
}

// WindowResponse is one page of number views plus pagination cursors.
type WindowResponse struct {
	CampaignID        string             `json:"campaignId"`
	RangeStart        int64              `json:"rangeStart"`
	RangeEnd          int64              `json:"rangeEnd"`
	PageStart         int64              `json:"pageStart"`
	PageEnd           int64              `json:"pageEnd"`
	Numbers           []numberspace.View `json:"numbers"`
	PreviousPageStart *int64             `json:"previousPageStart"`
	NextPageStart     *int64             `json:"nextPageStart"`
}

// GetWindow returns one page of derived number states. When pageStart is
// nil the page begins at the smallest available number.
func (s *CatalogService) GetWindow(ctx context.Context, campaignID string, pageSize int64, pageStart *int64) (*WindowResponse, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetWindow")
	defer span.End()

	campaign, rng, err := s.resolveCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	start := rng.Start
	if pageStart != nil {
		start = *pageStart
	} else {
		smallest, err := s.smallestAvailable(ctx, campaign.ID, rng)
		if err != nil {
			return nil, err
		}
		start = smallest
	}

	pageStartN, pageEnd := clampWindow(rng, start, pageSize)

	records, err := s.store.GetNumberStatesRange(ctx, campaign.ID, pageStartN, pageEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to read number states: %w", err)
	}

	now := time.Now()
	views := make([]numberspace.View, 0, pageEnd-pageStartN+1)
	for n := pageStartN; n <= pageEnd; n++ {
		v := numberspace.Derive(records[n], now)
		v.Number = n
		views = append(views, v)
	}

	prev, next := windowCursors(rng, pageStartN, pageEnd, pageSize)
	return &WindowResponse{
		CampaignID:        campaign.ID,
		RangeStart:        rng.Start,
		RangeEnd:          rng.End,
		PageStart:         pageStartN,
		PageEnd:           pageEnd,
		Numbers:           views,
		PreviousPageStart: prev,
		NextPageStart:     next,
	}, nil
}

// RandomPickResponse carries the selected numbers; exhausted is set when
// fewer numbers were available than requested.
type RandomPickResponse struct {
	Numbers   []int64 `json:"numbers"`
	Exhausted bool    `json:"exhausted"`
}

// PickRandom selects up to quantity available numbers at random,
// falling back to a deterministic forward scan once random sampling
// stops producing fresh candidates.
func (s *CatalogService) PickRandom(ctx context.Context, campaignID string, quantity int64, exclude []int64) (*RandomPickResponse, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.PickRandom")
	defer span.End()

	if quantity <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "Quantidade deve ser maior que zero.")
	}
	if quantity > maxRandomPick {
		quantity = maxRandomPick
	}

	campaign, rng, err := s.resolveCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if rng.Total == 0 {
		return &RandomPickResponse{Numbers: []int64{}, Exhausted: true}, nil
	}

	rejected := make(map[int64]bool, len(exclude))
	for _, n := range exclude {
		rejected[n] = true
	}

	now := time.Now()
	accepted := make(map[int64]bool, quantity)
	batch := randomBatchSize(quantity)

	for round := 0; round < randomRounds && int64(len(accepted)) < quantity; round++ {
		candidates := make([]int64, 0, batch)
		for i := int64(0); i < batch; i++ {
			n := rng.Start + rand.Int63n(rng.Total)
			if rejected[n] || accepted[n] {
				continue
			}
			candidates = append(candidates, n)
		}
		if len(candidates) == 0 {
			continue
		}

		records, err := s.store.GetNumberStates(ctx, campaign.ID, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to check candidates: %w", err)
		}
		for _, n := range candidates {
			if int64(len(accepted)) >= quantity {
				break
			}
			if numberspace.Derive(records[n], now).Status == models.NumberStatusAvailable {
				accepted[n] = true
			} else {
				rejected[n] = true
			}
		}
	}

	// Fill any shortfall with a forward block scan; bounded by the range.
	exhausted := false
	if int64(len(accepted)) < quantity {
		exhausted, err = s.scanForward(ctx, campaign.ID, rng, quantity, accepted, rejected, now)
		if err != nil {
			return nil, err
		}
	}

	numbers := make([]int64, 0, len(accepted))
	for n := range accepted {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	return &RandomPickResponse{Numbers: numbers, Exhausted: exhausted}, nil
}

func (s *CatalogService) scanForward(ctx context.Context, campaignID string, rng numberspace.Range, quantity int64, accepted, rejected map[int64]bool, now time.Time) (bool, error) {
	block := s.business.CatalogBlockSize
	for from := rng.Start; from <= rng.End && int64(len(accepted)) < quantity; from += block {
		to := from + block - 1
		if to > rng.End {
			to = rng.End
		}
		records, err := s.store.GetNumberStatesRange(ctx, campaignID, from, to)
		if err != nil {
			return false, fmt.Errorf("failed to scan block: %w", err)
		}
		for n := from; n <= to && int64(len(accepted)) < quantity; n++ {
			if accepted[n] || rejected[n] {
				continue
			}
			if numberspace.Derive(records[n], now).Status == models.NumberStatusAvailable {
				accepted[n] = true
			}
		}
	}
	return int64(len(accepted)) < quantity, nil
}

// smallestAvailable scans fixed-size blocks from the range start until
// one contains an available number. A short-lived redis hint skips the
// scan on the hot path.
func (s *CatalogService) smallestAvailable(ctx context.Context, campaignID string, rng numberspace.Range) (int64, error) {
	if hint, ok, err := s.redis.GetSmallestAvailableHint(ctx, campaignID); err == nil && ok && rng.Contains(hint) {
		return hint, nil
	} else if err != nil {
		s.logger.Warn("Catalog cache read failed, falling back to scan", zap.Error(err))
	}

	now := time.Now()
	block := s.business.CatalogBlockSize
	for from := rng.Start; from <= rng.End; from += block {
		to := from + block - 1
		if to > rng.End {
			to = rng.End
		}
		records, err := s.store.GetNumberStatesRange(ctx, campaignID, from, to)
		if err != nil {
			return 0, fmt.Errorf("failed to scan block: %w", err)
		}
		for n := from; n <= to; n++ {
			if numberspace.Derive(records[n], now).Status == models.NumberStatusAvailable {
				if err := s.redis.SetSmallestAvailableHint(ctx, campaignID, n); err != nil {
					s.logger.Warn("Catalog cache write failed", zap.Error(err))
				}
				return n, nil
			}
		}
	}

	// Sold out: default the window to the range start.
	return rng.Start, nil
}

func (s *CatalogService) resolveCampaign(ctx context.Context, campaignID string) (*models.Campaign, numberspace.Range, error) {
	var campaign *models.Campaign
	var err error
	if campaignID != "" {
		campaign, err = s.store.GetCampaign(ctx, campaignID)
	} else {
		campaign, err = s.store.GetActiveCampaign(ctx)
	}
	if err != nil {
		return nil, numberspace.Range{}, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, numberspace.Range{}, apperr.New(apperr.NotFound, "Campanha não encontrada.")
	}
	return campaign, numberspace.ResolveRange(campaign, s.business.PlatformMaxNumber), nil
}

// clampWindow clamps [start, start+size-1] into the campaign range.
func clampWindow(rng numberspace.Range, start, size int64) (int64, int64) {
	if start < rng.Start {
		start = rng.Start
	}
	if start > rng.End {
		start = rng.End
	}
	end := start + size - 1
	if end > rng.End {
		end = rng.End
	}
	return start, end
}

// windowCursors computes the previous/next page starts, nil at the range
// boundaries.
func windowCursors(rng numberspace.Range, pageStart, pageEnd, size int64) (*int64, *int64) {
	var prev, next *int64
	if pageStart > rng.Start {
		p := pageStart - size
		if p < rng.Start {
			p = rng.Start
		}
		prev = &p
	}
	if pageEnd < rng.End {
		n := pageEnd + 1
		next = &n
	}
	return prev, next
}

// randomBatchSize scales the per-round sample to the requested quantity.
func randomBatchSize(quantity int64) int64 {
	batch := quantity * 4
	if batch < 40 {
		batch = 40
	}
	if batch > 200 {
		batch = 200
	}
	return batch
}
