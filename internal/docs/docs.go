// Package docs lists the documentation folder linked to a ticket.
//
// A ticket's docs live in a directory named task-<id>-<slug> under one of the
// configured roots. The folder for the current title is preferred; otherwise
// the first task-<id>-* folder (by lowercase name) is used, so renamed
// tickets keep their docs.
package docs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

	markdownExts = map[string]bool{".md": true, ".markdown": true, ".mdx": true}
	imageExts    = map[string]bool{
		".avif": true, ".bmp": true, ".gif": true, ".ico": true, ".jpeg": true, ".jpg": true,
		".png": true, ".svg": true, ".tif": true, ".tiff": true, ".webp": true,
	}
)

// File is one file inside a ticket docs folder.
type File struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	RelativePath string    `json:"relativePath"`
	SizeBytes    int64     `json:"sizeBytes"`
	UpdatedAt    time.Time `json:"updatedAt"`
	IsMarkdown   bool      `json:"isMarkdown"`
	IsImage      bool      `json:"isImage"`
}

// Listing is the body of GET /api/tickets/:id/docs.
type Listing struct {
	TicketID   int64  `json:"ticketId"`
	FolderPath string `json:"folderPath"`
	Exists     bool   `json:"exists"`
	Files      []File `json:"files"`
}

// Finder locates ticket docs folders.
type Finder struct {
	workspace string
	roots     []string
}

// NewFinder searches <workspaceRoot>/docs then <appRoot>/docs. Paths in
// listings are reported relative to workspaceRoot when possible.
func NewFinder(workspaceRoot, appRoot string) *Finder {
	f := &Finder{workspace: absOrEmpty(workspaceRoot)}
	seen := make(map[string]bool)
	for _, base := range []string{workspaceRoot, appRoot} {
		if base == "" {
			continue
		}
		root := absOrEmpty(filepath.Join(base, "docs"))
		if root == "" || seen[root] {
			continue
		}
		seen[root] = true
		f.roots = append(f.roots, root)
	}
	return f
}

func absOrEmpty(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	return abs
}

// Slugify lowercases title and collapses every non-alphanumeric run into "-".
func Slugify(title string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// FolderName is the docs folder name for a ticket title.
func FolderName(ticketID int64, title string) string {
	return fmt.Sprintf("task-%d-%s", ticketID, Slugify(title))
}

// Locate returns the docs folder for the ticket, or "" when none exists.
func (f *Finder) Locate(ticketID int64, title string) string {
	if title != "" {
		for _, root := range f.roots {
			candidate := filepath.Join(root, FolderName(ticketID, title))
			if isDir(candidate) {
				return candidate
			}
		}
	}

	prefix := fmt.Sprintf("task-%d-", ticketID)
	var matches []string
	for _, root := range f.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
				matches = append(matches, filepath.Join(root, e.Name()))
			}
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return strings.ToLower(filepath.Base(matches[i])) < strings.ToLower(filepath.Base(matches[j]))
	})
	return matches[0]
}

// List builds the docs listing for a ticket. A missing folder is not an error:
// the listing reports the folder a new ticket would use with exists=false.
func (f *Finder) List(ticketID int64, title string) (*Listing, error) {
	listing := &Listing{TicketID: ticketID, Files: []File{}}

	folder := f.Locate(ticketID, title)
	if folder == "" {
		if len(f.roots) > 0 {
			listing.FolderPath = f.relative(filepath.Join(f.roots[0], FolderName(ticketID, title)))
		}
		return listing, nil
	}

	listing.FolderPath = f.relative(folder)
	listing.Exists = true

	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		listing.Files = append(listing.Files, File{
			Name:         d.Name(),
			Path:         f.relative(path),
			RelativePath: filepath.ToSlash(rel),
			SizeBytes:    info.Size(),
			UpdatedAt:    info.ModTime().UTC(),
			IsMarkdown:   markdownExts[ext],
			IsImage:      imageExts[ext],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket docs: %w", err)
	}

	sort.SliceStable(listing.Files, func(i, j int) bool {
		return strings.ToLower(listing.Files[i].RelativePath) < strings.ToLower(listing.Files[j].RelativePath)
	})
	return listing, nil
}

// relative reports p relative to the workspace root, or p itself when it
// lies outside it.
func (f *Finder) relative(p string) string {
	if f.workspace == "" {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(f.workspace, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
