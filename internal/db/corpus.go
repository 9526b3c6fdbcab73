package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/style-tagger/internal/rules"
	"github.com/jonathan/style-tagger/internal/types"
)

// SaveExamples upserts labeled training examples keyed by document and
// paragraph position.
func (db *DB) SaveExamples(ctx context.Context, examples []types.LabeledExample) error {
	batch := &pgx.Batch{}
	for _, ex := range examples {
		metaJSON, err := json.Marshal(ex.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal example metadata: %w", err)
		}
		batch.Queue(
			`INSERT INTO labeled_examples (doc_id, para_index, text, tag, zone, alignment_score, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (doc_id, para_index) DO UPDATE
			 SET text = $3, tag = $4, zone = $5, alignment_score = $6, metadata = $7`,
			ex.DocID, ex.ParaIndex, ex.Text, ex.Tag, ex.Zone, ex.AlignmentScore, metaJSON,
		)
	}

	br := db.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range examples {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to save examples: %w", err)
		}
	}
	return nil
}

// LoadExamples retrieves the full labeled corpus in document order.
func (db *DB) LoadExamples(ctx context.Context) ([]types.LabeledExample, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT doc_id, para_index, text, tag, zone, alignment_score, metadata
		 FROM labeled_examples ORDER BY doc_id ASC, para_index ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load examples: %w", err)
	}
	defer rows.Close()

	var examples []types.LabeledExample
	for rows.Next() {
		var ex types.LabeledExample
		var metaJSON []byte
		if err := rows.Scan(&ex.DocID, &ex.ParaIndex, &ex.Text, &ex.Tag, &ex.Zone, &ex.AlignmentScore, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan example: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ex.Meta); err != nil {
				return nil, fmt.Errorf("failed to parse example metadata: %w", err)
			}
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// SaveRuleSet stores a trained rule set artifact as a new version.
func (db *DB) SaveRuleSet(ctx context.Context, rs *types.RuleSet) error {
	content, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to marshal rule set: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO rule_sets (version, trained_at, content)
		 VALUES ($1, $2, $3)`,
		rs.Version, rs.TrainedAt, content,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule set: %w", err)
	}
	return nil
}

// LoadLatestRuleSet retrieves the most recent rule set artifact, nil
// when none has been trained. The artifact is schema-validated on the
// way out.
func (db *DB) LoadLatestRuleSet(ctx context.Context) (*types.RuleSet, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM rule_sets ORDER BY created_at DESC LIMIT 1`,
	).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}
	return rules.Parse(content)
}
