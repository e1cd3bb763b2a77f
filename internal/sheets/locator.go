package sheets

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/patrickmn/go-cache"

	apperrors "excel-mcp/internal/errors"
)

// Locator resolves SharePoint URLs and file names to drive items.
type Locator struct {
	graph *GraphClient
	cache *cache.Cache
}

type driveItem struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	File            *struct{} `json:"file,omitempty"`
	ParentReference struct {
		DriveID string `json:"driveId"`
		SiteID  string `json:"siteId"`
	} `json:"parentReference"`
}

// Locate resolves siteURL and fileName to a workbook reference. A sharing
// link resolves directly and fileName may be empty. Results are cached.
func (l *Locator) Locate(ctx context.Context, siteURL, fileName string) (WorkbookRef, error) {
	siteURL = strings.TrimSpace(siteURL)
	fileName = strings.TrimSpace(fileName)
	if siteURL == "" {
		return WorkbookRef{}, apperrors.NewValidationError("url", nil, "required")
	}

	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return WorkbookRef{}, apperrors.NewValidationError("url", siteURL, "not an absolute URL")
	}

	key := siteURL + "|" + fileName
	if ref, ok := l.cache.Get(key); ok {
		return ref.(WorkbookRef), nil
	}

	var ref WorkbookRef
	if isSharingLink(u) {
		ref, err = l.resolveShare(ctx, siteURL)
	} else {
		if fileName == "" {
			return WorkbookRef{}, apperrors.NewValidationError("file_name", nil, "required")
		}
		ref, err = l.searchSite(ctx, u, fileName)
	}
	if err != nil {
		return WorkbookRef{}, err
	}

	l.cache.SetDefault(key, ref)
	return ref, nil
}

// isSharingLink matches links such as https://contoso.sharepoint.com/:x:/s/site/Eabc.
func isSharingLink(u *url.URL) bool {
	p := u.Path
	return strings.HasPrefix(p, "/:x:/") || strings.HasPrefix(p, "/:u:/") || strings.HasPrefix(p, "/:f:/")
}

// EncodeSharingURL encodes a sharing link as a Graph shares id.
func EncodeSharingURL(link string) string {
	return "u!" + base64.RawURLEncoding.EncodeToString([]byte(link))
}

func (l *Locator) resolveShare(ctx context.Context, link string) (WorkbookRef, error) {
	var item driveItem
	path := "/shares/" + EncodeSharingURL(link) + "/driveItem?$select=id,name,parentReference"
	if err := l.graph.call(ctx, "locate", http.MethodGet, path, nil, &item); err != nil {
		return WorkbookRef{}, err
	}
	if item.ID == "" || item.ParentReference.DriveID == "" {
		return WorkbookRef{}, apperrors.NotFoundf("sharing link %s", link)
	}
	return WorkbookRef{DriveID: item.ParentReference.DriveID, ItemID: item.ID}, nil
}

// sitePath returns the server-relative site path (/sites/x or /teams/x), or
// "" for the root site.
func sitePath(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) >= 2 && (segments[0] == "sites" || segments[0] == "teams") {
		return "/" + segments[0] + "/" + segments[1]
	}
	return ""
}

func (l *Locator) searchSite(ctx context.Context, u *url.URL, fileName string) (WorkbookRef, error) {
	var site struct {
		ID string `json:"id"`
	}
	sp := sitePath(u)
	path := "/sites/" + u.Host
	if sp != "" {
		path += ":" + sp
	}
	if err := l.graph.call(ctx, "locate", http.MethodGet, path+"?$select=id", nil, &site); err != nil {
		return WorkbookRef{}, err
	}
	if site.ID == "" {
		return WorkbookRef{}, apperrors.NotFoundf("site %s%s", u.Host, sp)
	}

	var found struct {
		Value []driveItem `json:"value"`
	}
	query := url.PathEscape(strings.ReplaceAll(fileName, "'", "''"))
	searchPath := fmt.Sprintf("/sites/%s/drive/root/search(q='%s')?$select=id,name,file,parentReference",
		url.PathEscape(site.ID), query)
	if err := l.graph.call(ctx, "locate", http.MethodGet, searchPath, nil, &found); err != nil {
		return WorkbookRef{}, err
	}

	item, ok := pickItem(found.Value, fileName)
	if !ok {
		return WorkbookRef{}, apperrors.NotFoundf("file %q in site %s%s", fileName, u.Host, sp)
	}
	return WorkbookRef{SiteID: site.ID, DriveID: item.ParentReference.DriveID, ItemID: item.ID}, nil
}

// pickItem prefers an exact (case-insensitive) name match and otherwise the
// first file result.
func pickItem(items []driveItem, fileName string) (driveItem, bool) {
	for _, it := range items {
		if strings.EqualFold(it.Name, fileName) {
			return it, true
		}
	}
	for _, it := range items {
		if it.File != nil {
			return it, true
		}
	}
	return driveItem{}, false
}
