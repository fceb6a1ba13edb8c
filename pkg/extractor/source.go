package extractor

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

// StateStrategy finds one family of embedded state containers in a page.
type StateStrategy interface {
	Name() string
	Priority() int
	Extract(doc *goquery.Document, rawHTML string) []models.EmbeddedStateCandidate
}
