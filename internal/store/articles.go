package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// Typed artifact helpers. Stage workers are the sole writers of their
// artifact kinds; everything here is write-through, so a failed write
// surfaces before any successor item is emitted.

// WriteMetadata persists the accretive article record.
func WriteMetadata(ctx context.Context, s Store, rec pubmed.ArticleRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.Write(ctx, MetadataKey(rec.PMID), data); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the article record for a PMID.
func ReadMetadata(ctx context.Context, s Store, pmid string) (pubmed.ArticleRecord, error) {
	data, err := s.Read(ctx, MetadataKey(pmid))
	if err != nil {
		return pubmed.ArticleRecord{}, fmt.Errorf("read metadata: %w", err)
	}
	var rec pubmed.ArticleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return pubmed.ArticleRecord{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return rec, nil
}

// WriteAbstract persists the abstract text artifact.
func WriteAbstract(ctx context.Context, s Store, pmid, abstract string) error {
	if err := s.Write(ctx, AbstractKey(pmid), []byte(abstract)); err != nil {
		return fmt.Errorf("write abstract: %w", err)
	}
	return nil
}

// WriteFullText persists the full text plus its source metadata.
func WriteFullText(ctx context.Context, s Store, pmid string, res pubmed.FullTextResult) error {
	if err := s.Write(ctx, FullTextKey(pmid), []byte(res.Text)); err != nil {
		return fmt.Errorf("write fulltext: %w", err)
	}
	meta := struct {
		PMID       string `json:"pmid"`
		Source     string `json:"source"`
		Retrieved  string `json:"download_timestamp"`
		TextLength int    `json:"text_length"`
	}{
		PMID:       pmid,
		Source:     res.Source,
		Retrieved:  res.RetrievedAt.Format("2006-01-02T15:04:05Z07:00"),
		TextLength: len(res.Text),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fulltext source: %w", err)
	}
	if err := s.Write(ctx, FullTextSourceKey(pmid), data); err != nil {
		return fmt.Errorf("write fulltext source: %w", err)
	}
	return nil
}

// ReadFullText loads the full text artifact for a PMID.
func ReadFullText(ctx context.Context, s Store, pmid string) (string, error) {
	data, err := s.Read(ctx, FullTextKey(pmid))
	if err != nil {
		return "", fmt.Errorf("read fulltext: %w", err)
	}
	return string(data), nil
}

// WriteChunks persists the ordered chunk list for a PMID.
func WriteChunks(ctx context.Context, s Store, pmid string, chunks []pubmed.Chunk) error {
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	if err := s.Write(ctx, ChunksKey(pmid), data); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}

// ReadChunks loads the chunk list for a PMID.
func ReadChunks(ctx context.Context, s Store, pmid string) ([]pubmed.Chunk, error) {
	data, err := s.Read(ctx, ChunksKey(pmid))
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	var chunks []pubmed.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks: %w", err)
	}
	return chunks, nil
}

// WriteSearchableText persists the concatenated searchable document.
func WriteSearchableText(ctx context.Context, s Store, pmid, text string) error {
	if err := s.Write(ctx, SearchableTextKey(pmid), []byte(text)); err != nil {
		return fmt.Errorf("write searchable text: %w", err)
	}
	return nil
}

// WriteDeadLetter records a full-text retrieval that exhausted every
// adapter so it stays eligible for periodic re-attempts.
func WriteDeadLetter(ctx context.Context, s Store, dl pubmed.DeadLetter) error {
	data, err := json.MarshalIndent(dl, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := s.Write(ctx, DeadLetterKey(dl.PMID), data); err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	return nil
}

// ReadDeadLetter loads the dead-letter record for a PMID.
func ReadDeadLetter(ctx context.Context, s Store, pmid string) (pubmed.DeadLetter, error) {
	data, err := s.Read(ctx, DeadLetterKey(pmid))
	if err != nil {
		return pubmed.DeadLetter{}, fmt.Errorf("read dead letter: %w", err)
	}
	var dl pubmed.DeadLetter
	if err := json.Unmarshal(data, &dl); err != nil {
		return pubmed.DeadLetter{}, fmt.Errorf("unmarshal dead letter: %w", err)
	}
	return dl, nil
}

// ListDeadLetters returns the PMIDs with a pending dead-letter record
// that have not since completed the pipeline.
func ListDeadLetters(ctx context.Context, s Store) ([]string, error) {
	keys, err := s.List(ctx, ArticlesPrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	var pmids []string
	for _, key := range keys {
		if !strings.HasSuffix(key, "/"+deadArtifact) {
			continue
		}
		pmid := PMIDFromKey(key)
		done, err := s.Exists(ctx, ChunksKey(pmid))
		if err != nil || done {
			continue
		}
		pmids = append(pmids, pmid)
	}
	sort.Strings(pmids)
	return pmids, nil
}

// ListArticleIDs returns every PMID with at least one stored artifact.
func ListArticleIDs(ctx context.Context, s Store) ([]string, error) {
	keys, err := s.List(ctx, ArticlesPrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	seen := make(map[string]struct{})
	var pmids []string
	for _, key := range keys {
		pmid := PMIDFromKey(key)
		if pmid == "" {
			continue
		}
		if _, ok := seen[pmid]; ok {
			continue
		}
		seen[pmid] = struct{}{}
		pmids = append(pmids, pmid)
	}
	sort.Strings(pmids)
	return pmids, nil
}

// WriteDedupSnapshot persists the dedup index snapshot artifact.
func WriteDedupSnapshot(ctx context.Context, s Store, snap pubmed.DedupSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dedup snapshot: %w", err)
	}
	if err := s.Write(ctx, IndexKey, data); err != nil {
		return fmt.Errorf("write dedup snapshot: %w", err)
	}
	return nil
}

// ReadDedupSnapshot loads the dedup index snapshot. A missing snapshot
// is not an error: the pipeline starts with an empty index.
func ReadDedupSnapshot(ctx context.Context, s Store) (pubmed.DedupSnapshot, error) {
	data, err := s.Read(ctx, IndexKey)
	if errors.Is(err, ErrNotFound) {
		return pubmed.DedupSnapshot{}, nil
	}
	if err != nil {
		return pubmed.DedupSnapshot{}, fmt.Errorf("read dedup snapshot: %w", err)
	}
	var snap pubmed.DedupSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return pubmed.DedupSnapshot{}, fmt.Errorf("unmarshal dedup snapshot: %w", err)
	}
	return snap, nil
}
