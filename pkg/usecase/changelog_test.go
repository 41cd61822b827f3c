package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/infra/source"
	"github.com/m-mizutani/annodb/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestChangelog(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewChangelog(source.New(), "testdata/changelog.md")

	_, err := uc.Entries(ctx, "", "")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagNotFound))

	gt.NoError(t, uc.Load(ctx)).Required()

	t.Run("all entries", func(t *testing.T) {
		entries, err := uc.Entries(ctx, "", "")
		gt.NoError(t, err)
		gt.A(t, entries).Length(5)
		gt.Value(t, entries[0].Category).Equal(model.CategoryENH)
		gt.Value(t, entries[0].Version).Equal(model.VersionRange{Since: "2022.8.24a1"})
	})

	t.Run("filter", func(t *testing.T) {
		entries, err := uc.Entries(ctx, "enhancements", "2022.8.24a1")
		gt.NoError(t, err)
		gt.A(t, entries).Length(2)

		entries, err = uc.Entries(ctx, "API", "")
		gt.NoError(t, err)
		gt.A(t, entries).Length(1)
		gt.Value(t, entries[0].Text).Equal("`get_annotations_matching` accepts wildcards.")
	})

	t.Run("summary", func(t *testing.T) {
		summary, err := uc.Summary(ctx)
		gt.NoError(t, err)
		gt.A(t, summary).Length(2)
		gt.Number(t, summary[0].Total).Equal(2)
		gt.Number(t, summary[1].Counts[model.CategoryContributors]).Equal(1)
	})

	t.Run("validate", func(t *testing.T) {
		issues, err := uc.Validate(ctx)
		gt.NoError(t, err)
		gt.A(t, issues).Length(0)
	})
}

func TestChangelog_Reload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "changelog.md")
	gt.NoError(t, os.WriteFile(path, []byte("# v1.0.0\n\n## BUG\n\n- one\n"), 0o600))

	uc := usecase.NewChangelog(source.New(), path)
	gt.NoError(t, uc.Load(ctx)).Required()

	gt.NoError(t, os.WriteFile(path, []byte("# v1.0.0\n\n## BUG\n\n- one\n- two\n\n## Misc\n"), 0o600))
	gt.NoError(t, uc.Load(ctx))

	entries, err := uc.Entries(ctx, "BUG", "1.0.0")
	gt.NoError(t, err)
	gt.A(t, entries).Length(2)

	issues, err := uc.Validate(ctx)
	gt.NoError(t, err)
	gt.A(t, issues).Length(2) // unknown and empty "Misc"

	t.Run("broken file keeps previous version", func(t *testing.T) {
		gt.NoError(t, os.WriteFile(path, []byte("- entry before any section\n"), 0o600))
		err := uc.Load(ctx)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagParse))

		entries, err := uc.Entries(ctx, "BUG", "")
		gt.NoError(t, err)
		gt.A(t, entries).Length(2)
	})
}
