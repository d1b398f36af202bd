package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"polyrepo/config"
	"polyrepo/data/orm/repo"
	"polyrepo/data/store"
	"polyrepo/logging"
	"polyrepo/polymorphic"
)

func newDemoCmd(configPath *string) *cobra.Command {
	var backendName string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Save and hydrate polymorphic adverts against the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if backendName != "" {
				cfg.Backend = backendName
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logger, sync, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer sync()
			return runDemo(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "override the configured backend (sqlite|postgres|memory|redis)")
	return cmd
}

// app 装配好的引擎与各实体的门面仓储
type app struct {
	engine    *polymorphic.Engine
	users     *polymorphic.Repo[*User]
	merchants *polymorphic.Repo[*Merchant]
	adverts   *polymorphic.Repo[*Advert]
	close     func() error

	// advertTable SQL 后端的原始表仓储，用于分页浏览
	advertTable *repo.Repo[*Advert]
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	reg, err := newRegistry()
	if err != nil {
		return nil, err
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	loc := polymorphic.NewLocator(reg, polymorphic.WithDefault(b.factory), polymorphic.WithLocatorLogger(logger))
	engine := polymorphic.NewEngine(reg, loc, polymorphic.WithLogger(logger))

	a := &app{engine: engine, close: b.close}
	userRepo, err := loc.Locate("User")
	if err != nil {
		_ = b.close()
		return nil, err
	}
	merchantRepo, err := loc.Locate("Merchant")
	if err != nil {
		_ = b.close()
		return nil, err
	}
	advertRepo, err := loc.Locate("Advert")
	if err != nil {
		_ = b.close()
		return nil, err
	}
	a.users = polymorphic.NewRepo(engine, store.Typed[*User](userRepo))
	a.merchants = polymorphic.NewRepo(engine, store.Typed[*Merchant](merchantRepo))
	a.adverts = polymorphic.NewRepo(engine, store.Typed[*Advert](advertRepo))
	if b.orm != nil {
		if a.advertTable, err = repo.NewRepo[*Advert](b.orm, tables["Advert"]); err != nil {
			_ = b.close()
			return nil, err
		}
	}
	return a, nil
}

func runDemo(ctx context.Context, cfg *config.Config, logger logging.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	// 广告引用一个尚未保存的用户，保存时先级联保存用户再回填外键
	user := &User{Name: "alice"}
	ad := &Advert{Title: "bike for sale", Owner: user}
	if err := a.adverts.Save(ctx, ad); err != nil {
		return fmt.Errorf("save advert: %w", err)
	}
	fmt.Fprintf(out, "saved advert %d owned by %s %d\n", ad.ID, ad.EntityType, ad.EntityID)

	loaded, err := a.adverts.FindOne(ctx, polymorphic.Criteria{"id": ad.ID})
	if err != nil {
		return fmt.Errorf("find advert: %w", err)
	}
	fmt.Fprintf(out, "advert %q -> %s\n", loaded.Title, describeOwner(loaded.Owner))

	// 商户连同子广告一起保存，再次保存时先清理旧的子记录
	merchant := &Merchant{Name: "acme", Adverts: []*Advert{{Title: "anvil"}, {Title: "rocket"}}}
	if err := a.merchants.Save(ctx, merchant); err != nil {
		return fmt.Errorf("save merchant: %w", err)
	}
	merchant.Adverts = []*Advert{{Title: "giant magnet"}}
	if err := a.merchants.Save(ctx, merchant); err != nil {
		return fmt.Errorf("resave merchant: %w", err)
	}

	hydrated, err := a.merchants.HydrateOne(ctx, &Merchant{ID: merchant.ID})
	if err != nil {
		return fmt.Errorf("hydrate merchant: %w", err)
	}
	fmt.Fprintf(out, "merchant %d has %d advert(s)\n", hydrated.ID, len(hydrated.Adverts))
	for _, child := range hydrated.Adverts {
		fmt.Fprintf(out, "  - %s\n", child.Title)
	}

	all, err := a.adverts.Find(ctx, polymorphic.Criteria{"entityType": polymorphic.In{"User", "Merchant"}})
	if err != nil {
		return fmt.Errorf("list adverts: %w", err)
	}
	fmt.Fprintf(out, "%d advert(s) in total\n", len(all))
	for _, item := range all {
		fmt.Fprintf(out, "  - %s -> %s\n", item.Title, describeOwner(item.Owner))
	}

	if a.advertTable == nil {
		return nil
	}
	page, err := a.advertTable.ListPage(ctx,
		polymorphic.Criteria{"entityType": polymorphic.In{"User", "Merchant"}},
		repo.PageRequest{Page: 1, Size: 1, OrderBy: "title"})
	if err != nil {
		return fmt.Errorf("page adverts: %w", err)
	}
	fmt.Fprintf(out, "page %d/%d (%d total)\n", page.Page, page.TotalPages, page.Total)
	for _, item := range page.Data {
		fmt.Fprintf(out, "  - %s\n", item.Title)
	}
	return nil
}

func describeOwner(owner any) string {
	switch o := owner.(type) {
	case *User:
		return fmt.Sprintf("User %d (%s)", o.ID, o.Name)
	case *Merchant:
		return fmt.Sprintf("Merchant %d (%s)", o.ID, o.Name)
	case nil:
		return "none"
	default:
		return fmt.Sprintf("%T", o)
	}
}
