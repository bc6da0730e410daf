// Package mock provides the blog schema, blueprints and seed data the tests
// of this module share.
package mock

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealport/pkg/blueprint"
	"github.com/surrealdb/surrealport/pkg/models"
	"github.com/surrealdb/surrealport/pkg/store"
	"github.com/surrealdb/surrealport/pkg/store/memstore"
)

const (
	Author  models.TypeTag = "author"
	Profile models.TypeTag = "profile"
	Post    models.TypeTag = "post"
	Comment models.TypeTag = "comment"
	Tag     models.TypeTag = "tag"
	Image   models.TypeTag = "image"
)

// Schema returns the blog schema:
//
//	author  1-1 profile (profile.author_id)
//	author  1-n post    (post.author_id)
//	post    1-n comment (comment.post_id)
//	post    n-n tag     (post_tag)
//	post    morph cover (cover_type, cover_id)
//	comment n-1 author  (comment.author_id)
func Schema() store.Schema {
	return store.Schema{
		Author: {
			Table: "authors",
			Relations: map[string]store.Relation{
				"profile": {Kind: store.SingularOwning, Target: Profile, ForeignKey: "author_id"},
				"posts":   {Kind: store.Plural, Target: Post, ForeignKey: "author_id"},
			},
		},
		Profile: {
			Table: "profiles",
			Relations: map[string]store.Relation{
				"author": {Kind: store.SingularOwned, Target: Author, ForeignKey: "author_id"},
			},
		},
		Post: {
			Table: "posts",
			Relations: map[string]store.Relation{
				"author":   {Kind: store.SingularOwned, Target: Author, ForeignKey: "author_id"},
				"comments": {Kind: store.Plural, Target: Comment, ForeignKey: "post_id"},
				"tags": {
					Kind: store.PluralPivot, Target: Tag,
					Pivot: "post_tag", PivotOwnerKey: "post_id", PivotTargetKey: "tag_id",
				},
				"cover": {Kind: store.PolymorphicSingular, MorphType: "cover_type", MorphKey: "cover_id"},
			},
		},
		Comment: {
			Table: "comments",
			Relations: map[string]store.Relation{
				"post":   {Kind: store.SingularOwned, Target: Post, ForeignKey: "post_id"},
				"author": {Kind: store.SingularOwned, Target: Author, ForeignKey: "author_id"},
			},
		},
		Tag:   {Table: "tags"},
		Image: {Table: "images"},
	}
}

// LinkPattern finds post ids inside post bodies.
const LinkPattern = `#/links/(\d+)`

// Blueprints returns the blueprints matching Schema.
func Blueprints() *blueprint.Set {
	return blueprint.NewSet().
		Define(Author,
			blueprint.Field{Name: "name"},
			blueprint.Field{Name: "profile"},
			blueprint.Field{Name: "posts"},
		).
		Define(Profile,
			blueprint.Field{Name: "bio"},
			blueprint.Field{Name: "author"},
		).
		Define(Post,
			blueprint.Field{Name: "title"},
			blueprint.FieldWithRules{Name: "body", Rules: blueprint.MatchRules{
				blueprint.Content("body", blueprint.ContentRule{Pattern: LinkPattern, Target: Post}),
			}},
			blueprint.FieldWithRules{Name: "meta", Rules: blueprint.MatchRules{
				blueprint.Exact("meta.related", Post),
				blueprint.Exact(`/^meta\.see_also\.\d+$/`, Post),
			}},
			blueprint.Field{Name: "author"},
			blueprint.Field{Name: "comments"},
			blueprint.Field{Name: "tags"},
			blueprint.Field{Name: "cover"},
		).
		Define(Comment,
			blueprint.Field{Name: "text"},
			blueprint.Field{Name: "post"},
			blueprint.Field{Name: "author"},
		).
		Define(Tag, blueprint.Field{Name: "label"}).
		Define(Image, blueprint.Field{Name: "url"})
}

// Store returns an empty in-memory store for Schema.
func Store() *memstore.Store {
	return memstore.New(Schema())
}

// Blog is the seeded record set.
type Blog struct {
	Author   store.Record
	Profile  store.Record
	Posts    []store.Record
	Comments []store.Record
	Tags     []store.Record
	Cover    store.Record
}

// Seed fills s with one author, a profile, two posts linking to each other,
// three comments by the author, two tags shared by both posts and a cover
// image on the first post.
func Seed(ctx context.Context, s store.Store) (*Blog, error) {
	b := &Blog{}
	var err error

	save := func(t models.TypeTag, fields map[string]any) (store.Record, error) {
		r, err := s.Create(ctx, t)
		if err != nil {
			return nil, err
		}
		for k, v := range fields {
			r.Set(k, v)
		}
		if err := s.Save(ctx, r); err != nil {
			return nil, fmt.Errorf("seed %s: %w", t, err)
		}
		return r, nil
	}

	if b.Author, err = save(Author, map[string]any{"name": "Ada"}); err != nil {
		return nil, err
	}
	if b.Profile, err = save(Profile, map[string]any{"bio": "writes", "author_id": b.Author.ID()}); err != nil {
		return nil, err
	}
	if b.Cover, err = save(Image, map[string]any{"url": "https://img.example/cover.png"}); err != nil {
		return nil, err
	}
	for _, label := range []string{"go", "graphs"} {
		tag, err := save(Tag, map[string]any{"label": label})
		if err != nil {
			return nil, err
		}
		b.Tags = append(b.Tags, tag)
	}

	first, err := save(Post, map[string]any{
		"title":      "First",
		"author_id":  b.Author.ID(),
		"cover_type": string(Image),
		"cover_id":   b.Cover.ID(),
	})
	if err != nil {
		return nil, err
	}
	second, err := save(Post, map[string]any{
		"title":     "Second",
		"author_id": b.Author.ID(),
		"body":      fmt.Sprintf(`<a href="#/links/%v">back</a>`, first.ID()),
		"meta":      map[string]any{"related": first.ID(), "see_also": []any{first.ID(), 0}},
	})
	if err != nil {
		return nil, err
	}
	first.Set("body", fmt.Sprintf(`<a href="#/links/%v">next</a> and <a href="#/links/%v">self</a>`, second.ID(), first.ID()))
	first.Set("meta", map[string]any{"related": second.ID()})
	if err := s.Save(ctx, first); err != nil {
		return nil, err
	}
	b.Posts = []store.Record{first, second}

	for _, p := range b.Posts {
		for _, tag := range b.Tags {
			if err := s.Attach(ctx, p, "tags", tag.ID()); err != nil {
				return nil, err
			}
		}
	}

	for i, p := range []store.Record{first, first, second} {
		c, err := save(Comment, map[string]any{
			"text":      fmt.Sprintf("comment %d", i+1),
			"post_id":   p.ID(),
			"author_id": b.Author.ID(),
		})
		if err != nil {
			return nil, err
		}
		b.Comments = append(b.Comments, c)
	}
	return b, nil
}

// ConfigYAML describes Schema and Blueprints in the config file format.
const ConfigYAML = `
types:
  author:
    table: authors
    relations:
      profile: {kind: has_one, target: profile, foreign_key: author_id}
      posts: {kind: has_many, target: post, foreign_key: author_id}
    blueprint: [name, profile, posts]
  profile:
    table: profiles
    relations:
      author: {kind: belongs_to, target: author, foreign_key: author_id}
    blueprint: [bio, author]
  post:
    table: posts
    relations:
      author: {kind: belongs_to, target: author, foreign_key: author_id}
      comments: {kind: has_many, target: comment, foreign_key: post_id}
      tags:
        kind: many_to_many
        target: tag
        pivot: post_tag
        pivot_owner_key: post_id
        pivot_target_key: tag_id
      cover: {kind: morph_to, morph_type: cover_type, morph_key: cover_id}
    blueprint:
      - title
      - [body, {body: {'#/links/(\d+)': post}}]
      - [meta, {meta.related: post, '/^meta\.see_also\.\d+$/': post}]
      - author
      - comments
      - tags
      - cover
  comment:
    table: comments
    relations:
      post: {kind: belongs_to, target: post, foreign_key: post_id}
      author: {kind: belongs_to, target: author, foreign_key: author_id}
    blueprint: [text, post, author]
  tag:
    table: tags
    blueprint: [label]
  image:
    table: images
    blueprint: [url]
`
