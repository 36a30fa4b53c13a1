package resolver

import (
	"time"

	"go.uber.org/zap"
)

// Input is everything fetched from the forest, in fetch order.
type Input struct {
	Accounts []*RawAccount
	Contacts []*RawContact
}

// Options configures a resolution pass.
type Options struct {
	OverrideEmailAttribute   string
	OverrideManagerAttribute string
	KeyField                 KeyField
	ExtensionAttributes      []string
	IncludeContacts          bool
}

func (o Options) buildOptions() BuildOptions {
	return BuildOptions{
		ManagerOptions: ManagerOptions{
			OverrideEmailAttribute:   o.OverrideEmailAttribute,
			OverrideManagerAttribute: o.OverrideManagerAttribute,
		},
		ExtensionAttributes: o.ExtensionAttributes,
	}
}

type Resolver struct {
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func New(opts Options, logger *zap.Logger) *Resolver {
	if opts.KeyField == "" {
		opts.KeyField = KeyDistinguishedName
	}
	return &Resolver{
		opts:   opts,
		logger: logger.With(zap.String("component", "resolver")),
		now:    time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve runs one full pass: it builds the identity cache from everything
// fetched, then resolves each account followed by each contact. A new OutputMap
// is returned on every call.
func (r *Resolver) Resolve(in Input) *OutputMap {
	now := r.now()
	cache := BuildIdentityCache(in.Accounts, in.Contacts)
	out := NewOutputMap(r.opts.KeyField)
	build := r.opts.buildOptions()

	r.logger.Debug("identity cache built",
		zap.Int("accounts", len(in.Accounts)),
		zap.Int("contacts", len(in.Contacts)),
		zap.Int("keys", cache.Len()),
	)

	skippedTrusts := 0
	for _, account := range in.Accounts {
		if account.IsTrustAccount() {
			skippedTrusts++
			continue
		}

		password := ResolvePasswordState(account, now)
		manager := ResolveManager(account, cache, build.ManagerOptions, now)
		record := BuildUserRecord(account, password, manager, build, now)

		r.insert(out, accountKey(r.opts.KeyField, account, &record), record)
	}

	if r.opts.IncludeContacts {
		for _, contact := range in.Contacts {
			record := BuildContactRecord(contact, build)
			key, ok := contactKey(r.opts.KeyField, &record)
			if !ok {
				continue
			}
			r.insert(out, key, record)
		}
	}

	r.logger.Info("resolution complete",
		zap.Int("records", out.Len()),
		zap.Int("trust_accounts_skipped", skippedTrusts),
		zap.String("key_field", string(r.opts.KeyField)),
	)
	return out
}

func (r *Resolver) insert(out *OutputMap, key string, record ResolvedRecord) {
	if key == "" {
		r.logger.Debug("record has no value for key field, skipping",
			zap.String("dn", record.DistinguishedName),
			zap.String("key_field", string(r.opts.KeyField)),
		)
		return
	}
	if replaced := out.Set(key, record); replaced {
		r.logger.Debug("output key collision, later record wins",
			zap.String("key", key),
			zap.String("dn", record.DistinguishedName),
		)
	}
}
