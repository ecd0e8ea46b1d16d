package store

import (
	"fmt"
	"path"
	"strings"
)

// Artifact key layout. Every per-article artifact lives under
// articles/{pmid}/{kind}/..., with index, feed and status artifacts at
// fixed top-level keys so the replication backends can snapshot the
// whole tree uniformly.
const (
	ArticlesPrefix   = "articles"
	IndexKey         = "index/processed_pmids.json"
	FeedsPrefix      = "feeds"
	StatusKey        = "status/status.json"
	StatusPageKey    = "status/index.html"
	metadataArtifact = "metadata/article.json"
	abstractArtifact = "abstract/content.txt"
	fulltextArtifact = "fulltext/content.txt"
	sourceArtifact   = "fulltext/source.json"
	chunksArtifact   = "ocr/rag_chunks.json"
	searchArtifact   = "ocr/searchable_text.txt"
	deadArtifact     = "deadletter/fulltext.json"
)

// MetadataKey returns the metadata artifact key for a PMID.
func MetadataKey(pmid string) string {
	return path.Join(ArticlesPrefix, pmid, metadataArtifact)
}

// AbstractKey returns the abstract artifact key for a PMID.
func AbstractKey(pmid string) string {
	return path.Join(ArticlesPrefix, pmid, abstractArtifact)
}

// FullTextKey returns the full-text artifact key for a PMID.
func FullTextKey(pmid string) string {
	return path.Join(ArticlesPrefix, pmid, fulltextArtifact)
}

// FullTextSourceKey returns the full-text source metadata key.
func FullTextSourceKey(pmid string) string {
	return path.Join(ArticlesPrefix, pmid, sourceArtifact)
}

// ChunksKey returns the chunk list artifact key for a PMID.
func ChunksKey(pmid string) string {
	return path.Join(ArticlesPrefix, pmid, chunksArtifact)
}

// SearchableTextKey returns the searchable text artifact key.
func SearchableTextKey(pmid string) string {
	return path.Join(ArticlesPrefix, pmid, searchArtifact)
}

// DeadLetterKey returns the full-text dead-letter key for a PMID.
func DeadLetterKey(pmid string) string {
	return path.Join(ArticlesPrefix, pmid, deadArtifact)
}

// FeedKey returns the key for a named feed artifact.
func FeedKey(name string) string {
	return path.Join(FeedsPrefix, fmt.Sprintf("%s.xml", name))
}

// PMIDFromKey extracts the PMID segment from an articles/... key, or
// returns "" when the key is not an article artifact.
func PMIDFromKey(key string) string {
	rest, ok := strings.CutPrefix(key, ArticlesPrefix+"/")
	if !ok {
		return ""
	}
	pmid, _, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	return pmid
}
