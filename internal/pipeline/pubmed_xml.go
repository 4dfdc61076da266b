// =============================================================================
// pubmed_xml.go - EFetch XML → Article mapping
// =============================================================================
//
// All knowledge of the PubMed article XML schema lives in this file. Tests
// feed fixture XML straight into ParseArticleSet without a network call.
//
// Relevant subset of the schema:
//
//	<PubmedArticleSet>
//	  <PubmedArticle>
//	    <MedlineCitation>
//	      <PMID>39012345</PMID>
//	      <Article>
//	        <Journal><Title>..</Title><JournalIssue><PubDate><Year/><Month/></PubDate></JournalIssue></Journal>
//	        <ArticleTitle>..</ArticleTitle>
//	        <Abstract><AbstractText Label="..">..</AbstractText>...</Abstract>
//	        <AuthorList><Author><LastName/><Initials/></Author>...</AuthorList>
//
// Each <PubmedArticle> is decoded on its own. A record that cannot be
// mapped (no PMID) is skipped and the batch continues. A lexical error in
// the stream (bad character, early EOF) stops the read; records mapped
// before it are kept and the error is reported as a skip.
//
// =============================================================================
package pipeline

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	noTitle      = "No Title"
	unknownDate  = "Unknown Date"
	maxAuthors   = 3
	recordTagXML = "PubmedArticle"
)

// pubmedArticle mirrors one <PubmedArticle> element.
type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title        string `xml:"Title"`
				JournalIssue struct {
					PubDate struct {
						Year  string `xml:"Year"`
						Month string `xml:"Month"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			ArticleTitle innerMarkup `xml:"ArticleTitle"`
			Abstract     struct {
				Texts []innerMarkup `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []pubmedAuthor `xml:"Author"`
			} `xml:"AuthorList"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

// pubmedAuthor mirrors <Author>. Group authors carry only CollectiveName.
type pubmedAuthor struct {
	LastName       string `xml:"LastName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

// innerMarkup keeps the raw content of an element that may contain inline
// formatting tags (<i>, <sup>, <sub>, ...).
type innerMarkup struct {
	Inner string `xml:",innerxml"`
}

func (m innerMarkup) text() string {
	return markupText(m.Inner)
}

// ParseArticleSet reads an EFetch response and returns the articles it
// could map, in document order. articleBase is the prefix of each article
// URL. skipped reports records that were dropped. A non-nil error means the
// document itself could not be read.
func ParseArticleSet(r io.Reader, articleBase string) (articles []Article, skipped []error, err error) {
	dec := xml.NewDecoder(r)
	// PubMed declares an external DTD and uses HTML entities in places.
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	for {
		tok, tokErr := dec.Token()
		if errors.Is(tokErr, io.EOF) {
			break
		}
		if tokErr != nil {
			if len(articles) == 0 && len(skipped) == 0 {
				return nil, nil, fmt.Errorf("XML parse failed: %w", tokErr)
			}
			// Truncated document: keep what was already mapped.
			skipped = append(skipped, fmt.Errorf("XML stream ended early: %w", tokErr))
			break
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != recordTagXML {
			continue
		}

		var raw struct {
			Inner []byte `xml:",innerxml"`
		}
		if err := dec.DecodeElement(&raw, &start); err != nil {
			skipped = append(skipped, fmt.Errorf("read record: %w", err))
			continue
		}

		a, err := decodeArticle(raw.Inner, articleBase)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		articles = append(articles, a)
	}
	return articles, skipped, nil
}

// decodeArticle maps the inner XML of one <PubmedArticle>.
func decodeArticle(inner []byte, articleBase string) (Article, error) {
	var pa pubmedArticle
	buf := make([]byte, 0, len(inner)+len("<PubmedArticle></PubmedArticle>"))
	buf = append(buf, "<PubmedArticle>"...)
	buf = append(buf, inner...)
	buf = append(buf, "</PubmedArticle>"...)

	dec := xml.NewDecoder(bytes.NewReader(buf))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&pa); err != nil {
		return Article{}, fmt.Errorf("decode record: %w", err)
	}
	return toArticle(pa, articleBase)
}

// toArticle applies the field defaults. Only the PMID is mandatory.
func toArticle(pa pubmedArticle, articleBase string) (Article, error) {
	mc := pa.MedlineCitation
	id := strings.TrimSpace(mc.PMID)
	if id == "" {
		return Article{}, errors.New("record without PMID")
	}

	art := mc.Article
	title := art.ArticleTitle.text()
	if title == "" {
		title = noTitle
	}

	authors, truncated := authorNames(art.AuthorList.Authors)

	var segments []string
	for _, t := range art.Abstract.Texts {
		if s := t.text(); s != "" {
			segments = append(segments, s)
		}
	}

	return Article{
		ID:               id,
		Title:            title,
		Authors:          authors,
		AuthorsTruncated: truncated,
		PubDate:          formatPubDate(art.Journal.JournalIssue.PubDate.Year, art.Journal.JournalIssue.PubDate.Month),
		URL:              ArticleURL(articleBase, id),
		Abstract:         strings.Join(segments, " "),
		Journal:          normalizeWhitespace(art.Journal.Title),
	}, nil
}

// authorNames returns up to maxAuthors display names and whether more
// authors exist.
func authorNames(list []pubmedAuthor) ([]string, bool) {
	var names []string
	for _, a := range list {
		name := strings.TrimSpace(strings.TrimSpace(a.LastName) + " " + strings.TrimSpace(a.Initials))
		if name == "" {
			name = normalizeWhitespace(a.CollectiveName)
		}
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if len(names) > maxAuthors {
		return names[:maxAuthors], true
	}
	return names, false
}

// formatPubDate renders "Year-Month", "Year" or "Unknown Date".
func formatPubDate(year, month string) string {
	year = strings.TrimSpace(year)
	month = strings.TrimSpace(month)
	if year == "" {
		return unknownDate
	}
	if month == "" {
		return year
	}
	return year + "-" + month
}

// ArticleURL builds the public article link for id.
func ArticleURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/" + id + "/"
}
