package extract

import (
	"context"
	"strconv"

	"searchreporting/internal/adwords"
	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
)

// CustomerPager lists one page of the account hierarchy under a customer.
type CustomerPager interface {
	ManagedCustomers(ctx context.Context, customerID string, startIndex, pageSize int) (*adwords.ManagedCustomerPage, error)
}

// AccountResolver expands a manager account into the accounts reports are
// pulled for.
type AccountResolver struct {
	pager    CustomerPager
	pageSize int
	logger   *observability.Logger
}

func NewAccountResolver(pager CustomerPager, pageSize int, logger *observability.Logger) *AccountResolver {
	if pageSize <= 0 {
		pageSize = 500
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &AccountResolver{pager: pager, pageSize: pageSize, logger: logger}
}

// ResolveLeafAccounts returns the direct children of root when root manages
// other accounts, otherwise root alone. Ids are returned without dashes.
func (r *AccountResolver) ResolveLeafAccounts(ctx context.Context, root string) ([]string, error) {
	normalized := adwords.NormalizeCustomerID(root)
	rootID, err := strconv.ParseInt(normalized, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "Invalid customer id").
			WithContext("customer_id", root)
	}

	children := make(map[int64][]int64)
	startIndex := 0
	for {
		page, err := r.pager.ManagedCustomers(ctx, normalized, startIndex, r.pageSize)
		if err != nil {
			return nil, err
		}

		if len(page.Entries) > 0 {
			for _, link := range page.Links {
				children[link.ManagerCustomerID] = append(children[link.ManagerCustomerID], link.ClientCustomerID)
			}
		}

		startIndex += r.pageSize
		if startIndex >= page.TotalNumEntries {
			break
		}
	}

	leaves := children[rootID]
	if len(leaves) == 0 {
		leaves = []int64{rootID}
	}

	accounts := make([]string, 0, len(leaves))
	for _, id := range leaves {
		accounts = append(accounts, strconv.FormatInt(id, 10))
	}

	r.logger.InfoWithFields("Resolved accounts", map[string]interface{}{
		"root":     normalized,
		"accounts": accounts,
	})
	return accounts, nil
}
