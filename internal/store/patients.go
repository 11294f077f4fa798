package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/neurotunes/neurotunes-server/internal/domain"
)

// chunkSize bounds how many observations share one value.
const chunkSize = 256

// observationChunk is a run of consecutive observations stored under one key.
type observationChunk struct {
	BatchID      string               `json:"batch_id"`
	Observations []domain.Observation `json:"observations"`
}

func obsKeyPrefix(patientID string) []byte {
	return []byte(obsPrefix + patientID + ":")
}

func obsKey(patientID string, firstSeq int) []byte {
	return fmt.Appendf(obsKeyPrefix(patientID), "%010d", firstSeq)
}

// CreatePatient stores a new profile. Returns ErrAlreadyExists when the id is taken.
func (s *BadgerStore) CreatePatient(ctx context.Context, p *domain.Patient) error {
	return s.patients.Create(ctx, p.ID, p)
}

// GetPatient returns the profile, or ErrNotFound.
func (s *BadgerStore) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	return s.patients.Get(ctx, id)
}

// ListPatients returns profiles owned by caregiver, or every profile when
// caregiver is empty.
func (s *BadgerStore) ListPatients(ctx context.Context, caregiver string) ([]*domain.Patient, error) {
	var out []*domain.Patient
	if caregiver != "" {
		var err error
		if out, err = s.patients.ListByIndex(ctx, "caregiver", caregiver); err != nil {
			return nil, err
		}
	} else {
		for p, err := range s.patients.List(ctx) {
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	if out == nil {
		out = []*domain.Patient{}
	}
	SortPatients(out)
	return out, nil
}

// AppendObservations writes obs and the updated profile in one transaction.
// The profile is created if it does not exist yet. obs must continue the
// stored sequence exactly; anything else is ErrAlreadyExists.
func (s *BadgerStore) AppendObservations(ctx context.Context, p *domain.Patient, obs []domain.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(obs) == 0 {
		return ErrInvalidInput.WithMessage("no observations to append")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		next, err := s.nextSeqTxn(txn, p.ID)
		if err != nil {
			return err
		}
		if obs[0].Seq != next {
			return ErrAlreadyExists.WithMessagef("observations out of sequence: next is %d, got %d", next, obs[0].Seq)
		}
		if _, err := s.patients.upsertTxn(txn, p.ID, p); err != nil {
			return err
		}
		for start := 0; start < len(obs); start += chunkSize {
			end := min(start+chunkSize, len(obs))
			chunk := observationChunk{BatchID: obs[start].BatchID, Observations: obs[start:end]}
			data, err := json.Marshal(chunk)
			if err != nil {
				return fmt.Errorf("failed to marshal observations: %w", err)
			}
			if err := txn.Set(obsKey(p.ID, obs[start].Seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return ErrInvalidInput.WithMessage("batch too large for a single write").WithCause(err)
	}
	return err
}

// nextSeqTxn returns one past the last stored sequence number, reading only
// the final chunk.
func (s *BadgerStore) nextSeqTxn(txn *badger.Txn, patientID string) (int, error) {
	prefix := obsKeyPrefix(patientID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(append([]byte{}, prefix...), 0xFF))
	if !it.ValidForPrefix(prefix) {
		return 0, nil
	}
	var chunk observationChunk
	err := it.Item().Value(func(val []byte) error {
		return json.Unmarshal(val, &chunk)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to unmarshal observations: %w", err)
	}
	if len(chunk.Observations) == 0 {
		return 0, nil
	}
	return chunk.Observations[len(chunk.Observations)-1].Seq + 1, nil
}

// ListObservations returns the patient's observations in upload order.
func (s *BadgerStore) ListObservations(ctx context.Context, patientID string) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.Observation{}
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.patients.getTxn(txn, patientID); err != nil {
			return err
		}

		prefix := obsKeyPrefix(patientID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk observationChunk
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &chunk)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal observations: %w", err)
			}
			out = append(out, chunk.Observations...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePatient removes the profile and its whole history.
func (s *BadgerStore) DeletePatient(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := obsKeyPrefix(id)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.patients.deleteTxn(txn, id); err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("failed to delete observations: %w", err)
			}
		}
		return nil
	})
}
