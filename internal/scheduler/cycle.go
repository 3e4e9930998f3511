package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"penpal/internal/delay"
	"penpal/internal/types"
)

const (
	DefaultStalenessWindow   = 24 * time.Hour
	DefaultMatchesPerUser    = 3
	DefaultCycleConcurrency  = 8
	DefaultArchiveBatchSize  = 1000
	DefaultCandidatePoolSize = 2000

	// tieBreakSpan keeps the random component below one shared interest so
	// it only orders candidates with equal overlap.
	tieBreakSpan = 0.5
)

// LetterArchiver stores an export of archived letters. The key is generated
// by the service: "letters/YYYY/MM/DD/archive_{unix}.jsonl.zst".
// *archive.S3Uploader satisfies it.
type LetterArchiver interface {
	UploadArchive(ctx context.Context, key string, data []byte) error
}

// CycleReport summarizes one daily cycle.
type CycleReport struct {
	Archived             int `json:"archived"`
	ArchiveFailed        int `json:"archive_failed"`
	UsersConsidered      int `json:"users_considered"`
	UsersFailed          int `json:"users_failed"`
	LettersRedistributed int `json:"letters_redistributed"`
}

// CycleConfig holds the dependencies for NewCycleService.
type CycleConfig struct {
	Store    Store
	Archiver LetterArchiver // nil disables the export
	Rand     delay.Rand
	Metrics  Metrics

	// StalenessWindow is both the age after which read or delivered letters
	// are archived and the look-back for letters eligible for matching.
	StalenessWindow   time.Duration
	MatchesPerUser    int
	Concurrency       int
	ArchiveBatchSize  int
	CandidatePoolSize int
	Logger            *slog.Logger
}

// CycleService archives stale letters and redistributes recent ones to
// users with overlapping interests.
type CycleService struct {
	store    Store
	archiver LetterArchiver
	rnd      delay.Rand
	metrics  Metrics

	window       time.Duration
	matches      int
	concurrency  int
	archiveBatch int
	poolSize     int
	logger       *slog.Logger
}

// NewCycleService creates a CycleService, filling zero fields with defaults.
func NewCycleService(cfg CycleConfig) *CycleService {
	if cfg.Rand == nil {
		cfg.Rand = delay.NewRand(0)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.MatchesPerUser <= 0 {
		cfg.MatchesPerUser = DefaultMatchesPerUser
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultCycleConcurrency
	}
	if cfg.ArchiveBatchSize <= 0 {
		cfg.ArchiveBatchSize = DefaultArchiveBatchSize
	}
	if cfg.CandidatePoolSize <= 0 {
		cfg.CandidatePoolSize = DefaultCandidatePoolSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CycleService{
		store:        cfg.Store,
		archiver:     cfg.Archiver,
		rnd:          cfg.Rand,
		metrics:      cfg.Metrics,
		window:       cfg.StalenessWindow,
		matches:      cfg.MatchesPerUser,
		concurrency:  cfg.Concurrency,
		archiveBatch: cfg.ArchiveBatchSize,
		poolSize:     cfg.CandidatePoolSize,
		logger:       cfg.Logger,
	}
}

// RunDaily archives stale letters and then redistributes recent ones. Both
// phases always run; their errors are joined.
func (c *CycleService) RunDaily(ctx context.Context, now time.Time) (*CycleReport, error) {
	report := &CycleReport{}

	archived, failed, archiveErr := c.ArchiveStale(ctx, now)
	report.Archived = archived
	report.ArchiveFailed = failed

	redist, redistErr := c.Redistribute(ctx, now)
	if redist != nil {
		report.UsersConsidered = redist.UsersConsidered
		report.UsersFailed = redist.UsersFailed
		report.LettersRedistributed = redist.LettersRedistributed
	}

	c.metrics.RecordCycle(ctx, report)
	c.logger.InfoContext(ctx, "daily cycle complete",
		"archived", report.Archived,
		"archive_failed", report.ArchiveFailed,
		"users_considered", report.UsersConsidered,
		"users_failed", report.UsersFailed,
		"letters_redistributed", report.LettersRedistributed,
	)
	return report, errors.Join(archiveErr, redistErr)
}

// ArchiveStale moves delivered or read letters whose delivery is older than
// the staleness window to archived. Each letter is updated on its own; a
// letter that fails stays as it is, is counted once in failed and is not
// fetched again during this run.
//
// The returned error reports only a failure to list letters. An export
// failure is logged because the letters are already archived in the
// database.
func (c *CycleService) ArchiveStale(ctx context.Context, now time.Time) (archived, failed int, err error) {
	cutoff := now.Add(-c.window)
	var skip []string

	for {
		batch, err := c.store.Letters().Find(ctx, types.LetterFilter{
			ExcludeIDs:      skip,
			Statuses:        []types.LetterStatus{types.LetterStatusDelivered, types.LetterStatusRead},
			DeliveredBefore: cutoff,
			Limit:           uint64(c.archiveBatch),
		})
		if err != nil {
			return archived, failed, fmt.Errorf("listing stale letters: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		exported := make([]types.Letter, 0, len(batch))
		for _, l := range batch {
			changed, err := c.store.Letters().UpdateStatus(ctx, l.ID, types.LetterStatusUpdate{
				Status: types.LetterStatusArchived,
				At:     now,
				From:   []types.LetterStatus{types.LetterStatusDelivered, types.LetterStatusRead},
			})
			if err != nil {
				failed++
				skip = append(skip, l.ID)
				c.logger.WarnContext(ctx, "failed to archive letter",
					"letter_id", l.ID,
					"error", err,
				)
				continue
			}
			if !changed {
				skip = append(skip, l.ID)
				continue
			}
			at := now
			l.Status = types.LetterStatusArchived
			l.ArchivedAt = &at
			exported = append(exported, l)
		}
		archived += len(exported)

		c.export(ctx, now, exported)

		// Every fetched letter is now archived or skipped, so a short batch
		// is the last one.
		if len(batch) < c.archiveBatch {
			break
		}
	}

	if archived > 0 || failed > 0 {
		c.logger.InfoContext(ctx, "archived stale letters",
			"archived", archived,
			"failed", failed,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return archived, failed, nil
}

func (c *CycleService) export(ctx context.Context, now time.Time, letters []types.Letter) {
	if c.archiver == nil || len(letters) == 0 {
		return
	}

	data, err := serializeLettersJSONL(letters)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to serialize letter archive", "error", err)
		return
	}

	key := fmt.Sprintf("letters/%d/%02d/%02d/archive_%d.jsonl.zst",
		now.Year(), now.Month(), now.Day(), now.UnixNano())
	if err := c.archiver.UploadArchive(ctx, key, data); err != nil {
		c.logger.ErrorContext(ctx, "failed to upload letter archive",
			"s3_key", key,
			"count", len(letters),
			"error", err,
		)
		return
	}
	c.logger.InfoContext(ctx, "uploaded letter archive",
		"s3_key", key,
		"count", len(letters),
	)
}

// serializeLettersJSONL converts letters to JSON Lines, one object per line.
func serializeLettersJSONL(letters []types.Letter) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, l := range letters {
		if err := enc.Encode(l); err != nil {
			return nil, fmt.Errorf("encoding letter %s: %w", l.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// RedistributeReport is the matching half of a CycleReport.
type RedistributeReport struct {
	UsersConsidered      int `json:"users_considered"`
	UsersFailed          int `json:"users_failed"`
	LettersRedistributed int `json:"letters_redistributed"`
}

type candidate struct {
	letter types.Letter
	score  float64
}

// Redistribute gives every user who wrote an original letter within the
// window up to MatchesPerUser recent delivered letters by other users, favoring
// authors who share the user's interests. Users are processed concurrently;
// one user's failure is counted and never affects the others.
func (c *CycleService) Redistribute(ctx context.Context, now time.Time) (*RedistributeReport, error) {
	since := now.Add(-c.window)

	users, err := c.store.Letters().DistinctSenders(ctx, types.LetterFilter{
		Kind:         types.LetterKindOriginal,
		CreatedAfter: since,
	})
	if err != nil {
		return nil, fmt.Errorf("listing active authors: %w", err)
	}
	report := &RedistributeReport{UsersConsidered: len(users)}
	if len(users) == 0 {
		return report, nil
	}

	// Letters still in transit are not shared before their recipient has
	// them.
	pool, err := c.store.Letters().Find(ctx, types.LetterFilter{
		Kind:         types.LetterKindOriginal,
		Statuses:     []types.LetterStatus{types.LetterStatusDelivered, types.LetterStatusReceived, types.LetterStatusRead},
		CreatedAfter: since,
		Limit:        uint64(c.poolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("loading candidate letters: %w", err)
	}

	ids := make(map[string]struct{}, len(users))
	for _, u := range users {
		ids[u] = struct{}{}
	}
	for _, l := range pool {
		ids[l.SenderID] = struct{}{}
	}
	profileIDs := make([]string, 0, len(ids))
	for id := range ids {
		profileIDs = append(profileIDs, id)
	}
	sort.Strings(profileIDs)
	profiles, err := c.store.Profiles().GetProfiles(ctx, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	created := make([]int, len(users))
	userErrs := make([]error, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, userID := range users {
		g.Go(func() error {
			n, err := c.redistributeTo(gctx, userID, pool, profiles, now)
			created[i] = n
			if err != nil {
				userErrs[i] = err
				c.logger.WarnContext(gctx, "redistribution failed for user",
					"user_id", userID,
					"error", err,
				)
			}
			// Per-user isolation: one failure never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	for i := range users {
		report.LettersRedistributed += created[i]
		if userErrs[i] != nil {
			report.UsersFailed++
		}
	}

	c.logger.InfoContext(ctx, "redistribution complete",
		"users", report.UsersConsidered,
		"failed", report.UsersFailed,
		"letters", report.LettersRedistributed,
	)
	return report, nil
}

func (c *CycleService) redistributeTo(ctx context.Context, userID string, pool []types.Letter, profiles map[string]types.UserProfile, now time.Time) (int, error) {
	received, err := c.store.Letters().Find(ctx, types.LetterFilter{
		Kind:        types.LetterKindDelivery,
		RecipientID: userID,
	})
	if err != nil {
		return 0, fmt.Errorf("loading received letters: %w", err)
	}
	seen := make(map[string]struct{}, len(received))
	for _, l := range received {
		if l.OriginalLetterID != nil {
			seen[*l.OriginalLetterID] = struct{}{}
		}
	}

	mine := interestSet(profiles[userID].Interests)
	var candidates []candidate
	for _, l := range pool {
		if l.SenderID == userID {
			continue
		}
		if _, ok := seen[l.ID]; ok {
			continue
		}
		score := float64(sharedInterests(mine, profiles[l.SenderID].Interests)) + c.rnd.Float64()*tieBreakSpan
		candidates = append(candidates, candidate{letter: l, score: score})
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].letter.ID < candidates[j].letter.ID
	})
	if len(candidates) > c.matches {
		candidates = candidates[:c.matches]
	}

	var n int
	err = c.store.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		n = 0
		for _, cand := range candidates {
			ok, err := repos.Letters().CreateDelivery(ctx, deliveryCopy(cand.letter, userID, now))
			if err != nil {
				return err
			}
			if ok {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func deliveryCopy(original types.Letter, recipientID string, now time.Time) *types.Letter {
	at := now
	origID := original.ID
	recipient := recipientID
	return &types.Letter{
		ID:               uuid.NewString(),
		SenderID:         original.SenderID,
		RecipientID:      &recipient,
		Kind:             types.LetterKindDelivery,
		OriginalLetterID: &origID,
		Content:          original.Content,
		Status:           types.LetterStatusDelivered,
		CreatedAt:        now,
		DeliveredAt:      &at,
	}
}

func interestSet(interests []string) map[string]struct{} {
	set := make(map[string]struct{}, len(interests))
	for _, in := range interests {
		if k := strings.ToLower(strings.TrimSpace(in)); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

func sharedInterests(mine map[string]struct{}, theirs []string) int {
	var n int
	for k := range interestSet(theirs) {
		if _, ok := mine[k]; ok {
			n++
		}
	}
	return n
}
