// Package vector holds the records stored in the vector index.
package vector

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLength bounds the text stored alongside a vector, in characters.
const MaxTextLength = 3000

// Payload field names shared by every index driver.
const (
	FieldDocumentID   = "document_id"
	FieldDocumentName = "document_name"
	FieldSeq          = "seq"
	FieldText         = "text"
	FieldOwnerID      = "owner_id"
	FieldCreatedAt    = "created_at"
	FieldSourceURL    = "source_url"
)

// Record is one embedded segment.
type Record struct {
	DocumentID   string
	DocumentName string
	Seq          int
	Text         string
	OwnerID      string
	CreatedAt    time.Time
	SourceURL    string
	Vector       []float32
}

// ID returns the record identifier, unique within the index.
func (r *Record) ID() string { return RecordID(r.DocumentID, r.Seq) }

// RecordID joins a document id and a sequence index.
func RecordID(documentID string, seq int) string {
	return documentID + ":" + strconv.Itoa(seq)
}

// ParseRecordID splits a record identifier into document id and sequence index.
func ParseRecordID(id string) (documentID string, seq int, err error) {
	i := strings.LastIndexByte(id, ':')
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed record id %q", id)
	}
	seq, err = strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed record id %q: %w", id, err)
	}
	return id[:i], seq, nil
}

// Truncate cuts text to at most MaxTextLength characters on a rune boundary.
// Reports whether anything was cut.
func Truncate(text string) (string, bool) {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text, false
	}
	n := 0
	for i := range text {
		if n == MaxTextLength {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// Hit is a single similarity search result.
type Hit struct {
	DocumentID string
	Seq        int
	Text       string
	Score      float64
}
