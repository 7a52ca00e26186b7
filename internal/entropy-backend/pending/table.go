package pending

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrDuplicate         = errors.New("request already pending")
	ErrNotFound          = errors.New("request not pending")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Journal persiste transições para que requisições abertas sobrevivam a um restart
type Journal interface {
	Save(ctx context.Context, r Request) error
	UpdateState(ctx context.Context, id [32]byte, s State) error
	LoadOpen(ctx context.Context) ([]Request, error)
}

// Table é o único dono das requisições pendentes. Inserção e claim podem ocorrer
// em qualquer ordem a partir de goroutines diferentes.
type Table struct {
	mu      sync.Mutex
	entries map[[32]byte]*Request

	journal Journal
	log     *zap.Logger
	now     func() time.Time
}

// NewTable aceita journal nil (somente memória)
func NewTable(journal Journal, log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	return &Table{
		entries: make(map[[32]byte]*Request),
		journal: journal,
		log:     log,
		now:     time.Now,
	}
}

func (t *Table) Put(ctx context.Context, r Request) error {
	r.State = StateRequested
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	entry := r.clone()

	t.mu.Lock()
	if _, ok := t.entries[r.RequestID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", r.ID(), ErrDuplicate)
	}
	t.entries[r.RequestID] = &entry
	t.mu.Unlock()

	// falha no journal não descarta a requisição: a entropia já foi paga
	if t.journal != nil {
		if err := t.journal.Save(ctx, entry); err != nil {
			t.log.Error("journal save failed", zap.String("request_id", r.ID()), zap.Error(err))
		}
	}
	return nil
}

func (t *Table) Get(id [32]byte) (Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return Request{}, false
	}
	return e.clone(), true
}

// Claim move Requested -> Fulfilled de forma atômica. Só o primeiro chamador recebe ok=true;
// é o portão que garante no máximo um settlement por requisição.
func (t *Table) Claim(ctx context.Context, id [32]byte) (Request, bool) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || e.State != StateRequested {
		t.mu.Unlock()
		return Request{}, false
	}
	e.State = StateFulfilled
	cp := e.clone()
	t.mu.Unlock()

	t.journalState(ctx, id, StateFulfilled)
	return cp, true
}

// Complete encerra a requisição (Settled ou Abandoned) e a remove da tabela
func (t *Table) Complete(ctx context.Context, id [32]byte, final State) error {
	if !final.Terminal() {
		return fmt.Errorf("%s -> %s: %w", IDString(id), final, ErrInvalidTransition)
	}

	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%s: %w", IDString(id), ErrNotFound)
	}
	if !CanTransition(e.State, final) {
		from := e.State
		t.mu.Unlock()
		return fmt.Errorf("%s %s -> %s: %w", IDString(id), from, final, ErrInvalidTransition)
	}
	delete(t.entries, id)
	t.mu.Unlock()

	t.journalState(ctx, id, final)
	return nil
}

func (t *Table) journalState(ctx context.Context, id [32]byte, s State) {
	if t.journal == nil {
		return
	}
	if err := t.journal.UpdateState(ctx, id, s); err != nil {
		t.log.Error("journal update failed",
			zap.String("request_id", IDString(id)),
			zap.Stringer("state", s),
			zap.Error(err),
		)
	}
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot devolve cópias ordenadas por criação
func (t *Table) Snapshot() []Request {
	t.mu.Lock()
	out := make([]Request, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.clone())
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Stale lista requisições mais antigas que age. Apenas diagnóstico: nada expira sozinho.
func (t *Table) Stale(age time.Duration) []Request {
	cutoff := t.now().Add(-age)
	var out []Request
	for _, r := range t.Snapshot() {
		if r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// Restore recarrega do journal as requisições ainda em Requested.
// Entradas em Fulfilled podem ter sido liquidadas antes da queda; viram Abandoned
// para reconciliação manual em vez de arriscar um segundo pagamento.
func (t *Table) Restore(ctx context.Context) (int, error) {
	if t.journal == nil {
		return 0, nil
	}
	open, err := t.journal.LoadOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("load journal: %w", err)
	}

	restored := 0
	for _, r := range open {
		switch r.State {
		case StateRequested:
			entry := r.clone()
			t.mu.Lock()
			if _, dup := t.entries[r.RequestID]; !dup {
				t.entries[r.RequestID] = &entry
				restored++
			}
			t.mu.Unlock()
		case StateFulfilled:
			t.log.Warn("request interrupted during settlement, abandoning",
				zap.String("request_id", r.ID()),
				zap.String("user", r.User.Hex()),
				zap.String("origin_tx", r.OriginTxHash.Hex()),
			)
			t.journalState(ctx, r.RequestID, StateAbandoned)
		}
	}
	return restored, nil
}
