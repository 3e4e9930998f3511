package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"penpal/internal/types"
)

// Pool is a DBTX that can begin transactions. *pgxpool.Pool satisfies it.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories bundles the repositories bound to one DBTX. It implements
// types.RepositoryRegistry.
type Repositories struct {
	transits       *TransitRepository
	letters        *LetterRepository
	friendRequests *FriendRequestRepository
	profiles       *ProfileRepository
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		transits:       NewTransitRepository(db),
		letters:        NewLetterRepository(db),
		friendRequests: NewFriendRequestRepository(db),
		profiles:       NewProfileRepository(db),
	}
}

func (r *Repositories) Transits() types.TransitRepository             { return r.transits }
func (r *Repositories) Letters() types.LetterRepository               { return r.letters }
func (r *Repositories) FriendRequests() types.FriendRequestRepository { return r.friendRequests }
func (r *Repositories) Profiles() types.ProfileRepository             { return r.profiles }

// Store exposes pool-bound repositories and runs functions in transactions.
// It implements types.TransactionManager.
type Store struct {
	*Repositories
	pool Pool

	JobLocks   *JobLockRepository
	JobHistory *JobHistoryRepository
}

// NewStore creates a Store over pool.
func NewStore(pool Pool) *Store {
	return &Store{
		Repositories: NewRepositories(pool),
		pool:         pool,
		JobLocks:     NewJobLockRepository(pool),
		JobHistory:   NewJobHistoryRepository(pool),
	}
}

// RunInTx runs fn with repositories bound to a new transaction. The
// transaction commits when fn returns nil and rolls back otherwise,
// including on panic. Nested calls open independent transactions.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos types.RepositoryRegistry) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(ctx, NewRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return types.NewAppError(types.ErrCodeInternalDB,
				fmt.Sprintf("rollback failed (original error: %v)", err), rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
