package activedirectory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// searcher is the part of *ldap.Conn the instance needs.
type searcher interface {
	Search(*ldap.SearchRequest) (*ldap.SearchResult, error)
}

type ActiveDirectoryInstance struct {
	BaseDn               string
	DomainControllerFQDN string
	PageSize             uint32
	UseTLS               bool

	conn   searcher
	close  func()
	logger *zap.Logger
}

func NewActiveDirectoryInstance(baseDn string, domainController string, pageSize uint32, useTLS bool, logger *zap.Logger) *ActiveDirectoryInstance {
	return &ActiveDirectoryInstance{
		BaseDn:               baseDn,
		DomainControllerFQDN: domainController,
		PageSize:             pageSize,
		UseTLS:               useTLS,
		close:                func() {},
		logger:               logger.With(zap.String("dc", domainController)),
	}
}

func (ad *ActiveDirectoryInstance) url() string {
	if ad.UseTLS {
		return fmt.Sprintf("ldaps://%s:636", ad.DomainControllerFQDN)
	}
	return fmt.Sprintf("ldap://%s:389", ad.DomainControllerFQDN)
}

// Connect dials the domain controller and binds with simple authentication.
func (ad *ActiveDirectoryInstance) Connect(username, password string) error {
	var opts []ldap.DialOpt
	if ad.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: ad.DomainControllerFQDN}))
	}

	conn, err := ldap.DialURL(ad.url(), opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", ad.url(), err)
	}

	// TODO: GSSAPI bind for hosts joined to the domain
	if err := conn.Bind(username, password); err != nil {
		conn.Close()
		return fmt.Errorf("failed to bind to %s: %w", ad.url(), err)
	}

	if res, err := conn.WhoAmI(nil); err == nil {
		ad.logger.Info("authenticated", zap.String("url", ad.url()), zap.String("authz_id", res.AuthzID))
	} else {
		ad.logger.Debug("whoami failed", zap.Error(err))
	}

	ad.conn = conn
	ad.close = func() { conn.Close() }
	return nil
}

func (ad *ActiveDirectoryInstance) Close() {
	ad.close()
	ad.conn = nil
}

// FetchPagedEntriesWithCallback runs a paged subtree search under baseDn and
// hands each page to processPage. The context is checked between pages.
func (ad *ActiveDirectoryInstance) FetchPagedEntriesWithCallback(
	ctx context.Context, baseDn, filter string, attributes []string, processPage func(entries []*ldap.Entry) error,
) error {
	if ad.conn == nil {
		return errors.New("not connected")
	}

	pageControl := ldap.NewControlPaging(ad.PageSize)
	pageRequest := ldap.NewSearchRequest(
		baseDn,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attributes,
		[]ldap.Control{pageControl},
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		searchResults, err := ad.conn.Search(pageRequest)
		if err != nil {
			return fmt.Errorf("LDAP search failed: %w", err)
		}

		if err := processPage(searchResults.Entries); err != nil {
			return fmt.Errorf("processing page %d failed: %w", page, err)
		}

		ad.logger.Debug("fetched page",
			zap.String("base_dn", baseDn),
			zap.Int("page", page),
			zap.Int("entries", len(searchResults.Entries)),
		)

		control := ldap.FindControl(searchResults.Controls, ldap.ControlTypePaging)
		paging, ok := control.(*ldap.ControlPaging)
		if !ok || len(paging.Cookie) == 0 {
			return nil
		}
		pageControl.SetCookie(paging.Cookie)
	}
}

// FetchAll collects every entry matched by a paged search.
func (ad *ActiveDirectoryInstance) FetchAll(ctx context.Context, baseDn, filter string, attributes []string) ([]*ldap.Entry, error) {
	var entries []*ldap.Entry
	err := ad.FetchPagedEntriesWithCallback(ctx, baseDn, filter, attributes, func(page []*ldap.Entry) error {
		entries = append(entries, page...)
		return nil
	})
	return entries, err
}
