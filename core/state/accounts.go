package state

import (
	"fmt"
	"math"
	"sort"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
	"github.com/onda-protocol/onda-program-library-sub000/crypto"
)

func (m *Manager) committedBalance(addr crypto.Address) (uint64, error) {
	var amount uint64
	if _, err := m.KVGet(balanceKey(addr), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Balance returns the balance of addr including this operation's pending
// credits and debits.
func (m *Manager) Balance(addr crypto.Address) (uint64, error) {
	base, err := m.committedBalance(addr)
	if err != nil {
		return 0, err
	}
	credit := m.credits[addr]
	if credit > math.MaxUint64-base {
		return 0, fmt.Errorf("state: balance of %s: %w", addr, coreerrors.ErrNumericOverflow)
	}
	return base + credit - m.debits[addr], nil
}

// Credit adds amount to addr.
func (m *Manager) Credit(addr crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if addr.IsZero() {
		return fmt.Errorf("state: credit to zero address: %w", coreerrors.ErrInvalidAmount)
	}
	current, err := m.Balance(addr)
	if err != nil {
		return err
	}
	if amount > math.MaxUint64-current || amount > math.MaxUint64-m.credits[addr] {
		return fmt.Errorf("state: credit %d to %s: %w", amount, addr, coreerrors.ErrNumericOverflow)
	}
	m.credits[addr] += amount
	return nil
}

// Debit removes amount from addr.
func (m *Manager) Debit(addr crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	current, err := m.Balance(addr)
	if err != nil {
		return err
	}
	if current < amount {
		return fmt.Errorf("state: %s holds %d, needs %d: %w", addr, current, amount, coreerrors.ErrInsufficientBalance)
	}
	m.debits[addr] += amount
	return nil
}

// Transfer moves amount from one account to another.
func (m *Manager) Transfer(from, to crypto.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	if err := m.Debit(from, amount); err != nil {
		return err
	}
	return m.Credit(to, amount)
}

// Finalize reconciles pending balance deltas against the balances committed
// in the backing store and writes the results. Callers must hold the commit
// lock so no other operation commits between Finalize and the batch write.
func (m *Manager) Finalize() error {
	for _, addr := range m.touchedAccounts() {
		base, err := m.committedBalance(addr)
		if err != nil {
			return err
		}
		credit, debit := m.credits[addr], m.debits[addr]
		if credit > math.MaxUint64-base {
			return fmt.Errorf("state: balance of %s: %w", addr, coreerrors.ErrNumericOverflow)
		}
		total := base + credit
		if total < debit {
			return fmt.Errorf("state: %s holds %d, needs %d: %w", addr, total, debit, coreerrors.ErrInsufficientBalance)
		}
		next := total - debit
		if next == 0 {
			if err := m.KVDelete(balanceKey(addr)); err != nil {
				return err
			}
			continue
		}
		if err := m.KVPut(balanceKey(addr), next); err != nil {
			return err
		}
	}
	m.credits = make(map[crypto.Address]uint64)
	m.debits = make(map[crypto.Address]uint64)
	return nil
}

func (m *Manager) touchedAccounts() []crypto.Address {
	seen := make(map[crypto.Address]struct{}, len(m.credits)+len(m.debits))
	for addr := range m.credits {
		seen[addr] = struct{}{}
	}
	for addr := range m.debits {
		seen[addr] = struct{}{}
	}
	addrs := make([]crypto.Address, 0, len(seen))
	for addr := range seen {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Compare(addrs[j]) < 0 })
	return addrs
}

// PendingAccounts reports how many accounts carry uncommitted balance deltas.
func (m *Manager) PendingAccounts() int { return len(m.touchedAccounts()) }
