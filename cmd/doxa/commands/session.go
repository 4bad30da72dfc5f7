package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/teranos/doxa/am"
	"github.com/teranos/doxa/db"
	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/storage"
	"github.com/teranos/doxa/logger"
)

// resolveDBPath picks the database location: --db flag, then the
// config/environment chain.
func resolveDBPath(cmd *cobra.Command) string {
	if flag, _ := cmd.Flags().GetString("db"); flag != "" {
		return flag
	}
	return am.GetDatabasePath()
}

// openDatabase opens and migrates the database at path.
func openDatabase(path string) (*sql.DB, error) {
	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", path)
	}
	return database, nil
}

// openSession rehydrates a session from the command's database, applying
// the configured overlap policy, inference budgets, and rules directory.
// The returned closer releases the database.
func openSession(cmd *cobra.Command) (*kb.Session, *sql.DB, func(), error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase(resolveDBPath(cmd))
	if err != nil {
		return nil, nil, nil, err
	}

	sess, err := sessionFromDB(database, cfg)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	closer := func() { database.Close() }
	return sess, database, closer, nil
}

// sessionFromDB builds a configured session over an already open database.
func sessionFromDB(database *sql.DB, cfg *am.Config) (*kb.Session, error) {
	policy, err := cfg.OverlapPolicy()
	if err != nil {
		return nil, err
	}

	opts := []kb.SessionOption{
		kb.WithOverlapPolicy(policy),
		kb.WithInferenceBudgets(cfg.Inference.MaxRounds, cfg.Inference.MaxDerivations),
	}
	if cfg.Inference.Hierarchy {
		opts = append(opts, kb.WithHierarchyInference())
	}

	store := storage.NewSQLStore(database, logger.Logger)
	sess, err := kb.OpenSession(store, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session")
	}

	if cfg.Inference.RulesDir != "" {
		if err := loadRulesDir(sess, cfg.Inference.RulesDir); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// loadRulesDir adds rules from a configured directory, skipping names the
// store already rehydrated so repeated opens do not collide.
func loadRulesDir(sess *kb.Session, dir string) error {
	rules, err := inference.LoadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "failed to load rules from %s", dir)
	}

	known := make(map[string]bool)
	for _, r := range sess.Rules() {
		known[r.Name] = true
	}
	for _, r := range rules {
		if known[r.Name] {
			continue
		}
		if err := sess.AddRule(r); err != nil {
			return errors.Wrapf(err, "failed to add rule %s", r.Name)
		}
	}
	return nil
}
