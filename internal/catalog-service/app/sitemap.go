package app

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"
	"time"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type URLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Sitemap lists the static pages, every category and every active product.
func (s *Service) Sitemap(ctx context.Context, baseURL string) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")

	set := URLSet{XMLNS: sitemapNS}
	for _, page := range []string{"/", "/catalog", "/about", "/contacts"} {
		set.URLs = append(set.URLs, SitemapURL{Loc: base + page, ChangeFreq: "weekly", Priority: "0.8"})
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		set.URLs = append(set.URLs, SitemapURL{
			Loc:        base + "/catalog?category=" + url.QueryEscape(pathKey(c.Slug, c.ID)),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	products, _, err := s.repo.ListProducts(ctx, domain.ProductFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		u := SitemapURL{
			Loc:        base + "/product/" + url.PathEscape(pathKey(p.Slug, p.ID)),
			ChangeFreq: "daily",
			Priority:   "0.6",
		}
		if !p.UpdatedAt.IsZero() {
			u.LastMod = p.UpdatedAt.UTC().Format(time.DateOnly)
		}
		set.URLs = append(set.URLs, u)
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func pathKey(slug, id string) string {
	if slug != "" {
		return slug
	}
	return id
}
