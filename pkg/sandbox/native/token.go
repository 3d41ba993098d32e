package native

import (
	"errors"
)

// Token program errors. All of them abort the invocation.
var (
	ErrAlreadyInitialized = errors.New("token already initialized")
	ErrNotInitialized     = errors.New("token not initialized")
	ErrNegativeAmount     = errors.New("negative amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnknownOperation   = errors.New("unknown operation")
)

// Token event topics, matching the wasm reference contract.
const (
	TopicInitialize = 1
	TopicMint       = 2
	TopicTransfer   = 3
)

const adminKey = 0

// TokenProgram is the reference token contract as Go code.
// Key 0 holds the admin handle; key h holds the balance of handle h.
type TokenProgram struct{}

// NewTokenProgram creates the token program.
func NewTokenProgram() *TokenProgram {
	return &TokenProgram{}
}

// Exports lists the token operations.
func (p *TokenProgram) Exports() []string {
	return []string{"initialize", "mint", "transfer", "balance"}
}

// Process executes a token operation.
func (p *TokenProgram) Process(ctx InvokeContext, op string, args []int64) (int64, error) {
	switch op {
	case "initialize":
		return 0, p.processInitialize(ctx, args[0])
	case "mint":
		return 0, p.processMint(ctx, args[0], args[1])
	case "transfer":
		return 0, p.processTransfer(ctx, args[0], args[1], args[2])
	case "balance":
		return ctx.StorageGet(args[0])
	default:
		return 0, ErrUnknownOperation
	}
}

func (p *TokenProgram) processInitialize(ctx InvokeContext, admin int64) error {
	ok, err := ctx.StorageHas(adminKey)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	if err := ctx.StoragePut(adminKey, admin); err != nil {
		return err
	}
	return ctx.EmitEvent(TopicInitialize, admin)
}

func (p *TokenProgram) processMint(ctx InvokeContext, to, amount int64) error {
	ok, err := ctx.StorageHas(adminKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	admin, err := ctx.StorageGet(adminKey)
	if err != nil {
		return err
	}
	if err := ctx.RequireAuth(admin); err != nil {
		return err
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	if err := p.credit(ctx, to, amount); err != nil {
		return err
	}
	return ctx.EmitEvent(TopicMint, amount)
}

func (p *TokenProgram) processTransfer(ctx InvokeContext, from, to, amount int64) error {
	if err := ctx.RequireAuth(from); err != nil {
		return err
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	bal, err := ctx.StorageGet(from)
	if err != nil {
		return err
	}
	if bal < amount {
		return ErrInsufficientFunds
	}
	if err := ctx.StoragePut(from, bal-amount); err != nil {
		return err
	}
	if err := p.credit(ctx, to, amount); err != nil {
		return err
	}
	return ctx.EmitEvent(TopicTransfer, amount)
}

// credit adds amount to an account balance.
func (p *TokenProgram) credit(ctx InvokeContext, account, amount int64) error {
	if err := ctx.Guest(); err != nil {
		return err
	}
	bal, err := ctx.StorageGet(account)
	if err != nil {
		return err
	}
	return ctx.StoragePut(account, bal+amount)
}
