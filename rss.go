package pubfeed

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const contentNS = "http://purl.org/rss/1.0/modules/content/"

type rssXML struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	ContentNS string     `xml:"xmlns:content,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
	CustomData    string    `xml:",innerxml"`
}

type rssItem struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	GUID        string     `xml:"guid"`
	Description string     `xml:"description,omitempty"`
	PubDate     string     `xml:"pubDate,omitempty"`
	Content     rssContent `xml:"content:encoded"`
}

type rssContent struct {
	Data string `xml:",cdata"`
}

// WriteRSS encodes feed as an RSS 2.0 document with full item content.
func WriteRSS(w io.Writer, feed *Feed) error {
	items := make([]rssItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		pubDate := ""
		if !it.Published.IsZero() {
			pubDate = it.Published.Format(time.RFC1123Z)
		}
		items = append(items, rssItem{
			Title:       it.Title,
			Link:        it.Link,
			GUID:        it.Link,
			Description: it.Description,
			PubDate:     pubDate,
			Content:     rssContent{Data: it.Content},
		})
	}
	lastBuild := ""
	if !feed.BuiltAt.IsZero() {
		lastBuild = feed.BuiltAt.Format(time.RFC1123Z)
	}
	doc := rssXML{
		Version:   "2.0",
		ContentNS: contentNS,
		Channel: rssChannel{
			Title:         feed.Title,
			Link:          feed.Site,
			Description:   feed.Description,
			Language:      feed.Language,
			LastBuildDate: lastBuild,
			Items:         items,
			CustomData:    feed.CustomData,
		},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(doc)
}

// EncodeRSS returns the RSS document for feed.
func EncodeRSS(feed *Feed) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteRSS(&buf, feed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderRSS(c echo.Context, body []byte) error {
	return c.Blob(http.StatusOK, "application/rss+xml; charset=utf-8", body)
}
