package driver

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/witslabs/quizwall/go/internal/models"
	"github.com/witslabs/quizwall/go/internal/quiz"
	"github.com/witslabs/quizwall/go/internal/rounds"
)

type fakeComps struct {
	mu       sync.Mutex
	comps    map[uuid.UUID]*models.Competition
	txHashes map[uuid.UUID]string
}

func newFakeComps(comps ...*models.Competition) *fakeComps {
	f := &fakeComps{
		comps:    make(map[uuid.UUID]*models.Competition),
		txHashes: make(map[uuid.UUID]string),
	}
	for _, c := range comps {
		f.comps[c.ID] = c
	}
	return f
}

func (f *fakeComps) GetCompetition(_ context.Context, id uuid.UUID) (*models.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comps[id]
	if !ok {
		return nil, quiz.ErrNotFound
	}
	out := *c
	if tx, ok := f.txHashes[id]; ok {
		out.TxHash = &tx
	}
	return &out, nil
}

func (f *fakeComps) ListActive(_ context.Context) ([]*models.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Competition
	for _, c := range f.comps {
		if c.IsActive {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (f *fakeComps) Deactivate(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.comps[id]; ok {
		c.IsActive = false
	}
	return nil
}

func (f *fakeComps) SetTxHash(_ context.Context, id uuid.UUID, txHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.txHashes[id]; !ok {
		f.txHashes[id] = txHash
	}
	return nil
}

func (f *fakeComps) txHash(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txHashes[id]
}

type fakeEnrollments struct {
	mu       sync.Mutex
	snapshot []rounds.EnrollmentAnswers
	settled  bool
	marked   []rounds.Winner
	per      decimal.Decimal
}

func (f *fakeEnrollments) AnswerSnapshot(_ context.Context, _ uuid.UUID) ([]rounds.EnrollmentAnswers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rounds.EnrollmentAnswers(nil), f.snapshot...), nil
}

func (f *fakeEnrollments) MarkWinners(_ context.Context, _ uuid.UUID, winners []rounds.Winner, perWinner decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false, nil
	}
	f.settled = true
	f.marked = winners
	f.per = perWinner
	return true, nil
}

type fakeViews struct {
	mu        sync.Mutex
	missing   map[int]bool
	questions int
	stats     int
}

func (f *fakeViews) QuestionByNumber(_ context.Context, comp *models.Competition, number int, _ time.Time) (*quiz.QuestionView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing[number] {
		return nil, fmt.Errorf("question %d: %w", number, quiz.ErrNotFound)
	}
	f.questions++
	return &quiz.QuestionView{
		ID:            uuid.New(),
		CompetitionID: comp.ID,
		Number:        number,
		Text:          fmt.Sprintf("question %d", number),
	}, nil
}

func (f *fakeViews) GetStats(_ context.Context, _ uuid.UUID, _ time.Time) (*quiz.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats++
	return &quiz.Stats{UsersParticipating: 1, TotalParticipants: 2}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	txHash string

	gotAddresses []string
	gotAmounts   []*big.Int
}

func (f *fakeSink) Distribute(_ context.Context, addresses []string, amounts []*big.Int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotAddresses = addresses
	f.gotAmounts = amounts
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.txHash, nil
}
