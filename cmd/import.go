package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

var errEmptyImport = errors.New("import file has no content items or menu links")

// importFile is the document accepted by the import command.
type importFile struct {
	Content   []domain.ContentItem `json:"content"`
	MenuLinks []domain.MenuLink    `json:"menu_links"`
}

type contentWriter interface {
	Upsert(ctx context.Context, item *domain.ContentItem) error
}

type menuWriter interface {
	Upsert(ctx context.Context, link *domain.MenuLink) error
}

type importResult struct {
	Content   int
	MenuLinks int
}

func newImportCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load content items and menu links into the content stores",
		Long: `Reads a JSON document of the form {"content": [...], "menu_links": [...]} and
upserts every record. Content goes to the configured content backend, menu links to
the database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, openErr := os.Open(path)
			if openErr != nil {
				return fmt.Errorf("open import file: %w", openErr)
			}
			defer f.Close()

			doc, readErr := readImportFile(f)
			if readErr != nil {
				return readErr
			}

			ctx := cmd.Context()
			app, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			result, importErr := importRecords(ctx, app.Stores.ContentWriter, app.Stores.Menus, doc)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d content items and %d menu links.\n",
				result.Content, result.MenuLinks)
			return importErr
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "JSON file to import")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readImportFile(r io.Reader) (*importFile, error) {
	var doc importFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode import file: %w", err)
	}
	if len(doc.Content) == 0 && len(doc.MenuLinks) == 0 {
		return nil, errEmptyImport
	}
	return &doc, nil
}

// importRecords upserts content before menu links so that menu links can reference it.
// It stops at the first failure and reports what was written so far.
func importRecords(ctx context.Context, content contentWriter, menus menuWriter, doc *importFile) (importResult, error) {
	var result importResult

	for i := range doc.Content {
		item := &doc.Content[i]
		if item.ID == "" {
			return result, fmt.Errorf("content item %d: missing id", i)
		}
		if err := content.Upsert(ctx, item); err != nil {
			return result, fmt.Errorf("content item %s: %w", item.ID, err)
		}
		result.Content++
	}

	for i := range doc.MenuLinks {
		link := &doc.MenuLinks[i]
		if link.ID == "" || link.Menu == "" {
			return result, fmt.Errorf("menu link %d: missing id or menu", i)
		}
		if err := menus.Upsert(ctx, link); err != nil {
			return result, fmt.Errorf("menu link %s: %w", link.ID, err)
		}
		result.MenuLinks++
	}

	return result, nil
}
