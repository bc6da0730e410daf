package benchmark_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/surrealdb/surrealport"
	"github.com/surrealdb/surrealport/internal/mock"
	"github.com/surrealdb/surrealport/pkg/codec"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
	"github.com/surrealdb/surrealport/pkg/store/memstore"
)

// seedBlogs fills a store with n seeded blogs and returns their authors.
func seedBlogs(b *testing.B, n int) (*memstore.Store, []store.Record) {
	b.Helper()
	st := mock.Store()
	authors := make([]store.Record, 0, n)
	for i := 0; i < n; i++ {
		blog, err := mock.Seed(context.Background(), st)
		if err != nil {
			b.Fatal(err)
		}
		authors = append(authors, blog.Author)
	}
	return st, authors
}

func BenchmarkExport(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("Blogs%d", n), func(b *testing.B) {
			st, authors := seedBlogs(b, n)
			p := surrealport.New(st, mock.Blueprints())
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := p.Export(ctx, authors...); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkImport(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("Blogs%d", n), func(b *testing.B) {
			st, authors := seedBlogs(b, n)
			ctx := context.Background()
			g, err := surrealport.New(st, mock.Blueprints()).Export(ctx, authors...)
			if err != nil {
				b.Fatal(err)
			}
			dst := surrealport.New(mock.Store(), mock.Blueprints())

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := dst.Import(ctx, g); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCBORDump(b *testing.B) {
	st, authors := seedBlogs(b, 10)
	ctx := context.Background()
	g, err := surrealport.New(st, mock.Blueprints()).Export(ctx, authors...)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := codec.NewCBORWriter(&buf).WriteGraph(g); err != nil {
			b.Fatal(err)
		}
		if _, err := codec.ReadGraph(ctx, &buf, models.DefaultPrefix); err != nil {
			b.Fatal(err)
		}
	}
}
