package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"searchreporting/internal/adwords"
	"searchreporting/internal/warehouse"
	"searchreporting/pkg/errors"
)

// fakePager serves the hierarchy from fixed pages keyed by start index.
type fakePager struct {
	pages      map[int]*adwords.ManagedCustomerPage
	startIndex []int
	customer   []string
	err        error
}

func (f *fakePager) ManagedCustomers(_ context.Context, customerID string, startIndex, _ int) (*adwords.ManagedCustomerPage, error) {
	f.startIndex = append(f.startIndex, startIndex)
	f.customer = append(f.customer, customerID)
	if f.err != nil {
		return nil, f.err
	}
	if page, ok := f.pages[startIndex]; ok {
		return page, nil
	}
	return &adwords.ManagedCustomerPage{}, nil
}

// MockDownloader is a mock implementation of ReportDownloader
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) DownloadReport(ctx context.Context, customerID string, def adwords.ReportDefinition, opts adwords.DownloadOptions) ([]byte, error) {
	args := m.Called(ctx, customerID, def, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockLoader is a mock implementation of TableLoader that records the data.
type MockLoader struct {
	mock.Mock
	data map[string][]string
}

func (m *MockLoader) LoadCSV(ctx context.Context, table string, src io.Reader, opts warehouse.LoadOptions) (int64, error) {
	content, _ := io.ReadAll(src)
	if m.data == nil {
		m.data = map[string][]string{}
	}
	m.data[table] = append(m.data[table], string(content))
	args := m.Called(ctx, table, opts)
	return args.Get(0).(int64), args.Error(1)
}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveLeafAccountsManager(t *testing.T) {
	pager := &fakePager{pages: map[int]*adwords.ManagedCustomerPage{
		0: {
			TotalNumEntries: 3,
			Entries:         []adwords.ManagedCustomer{{CustomerID: 1112223333}, {CustomerID: 4445556666}},
			Links: []adwords.ManagedCustomerLink{
				{ManagerCustomerID: 1112223333, ClientCustomerID: 4445556666},
				{ManagerCustomerID: 1112223333, ClientCustomerID: 7778889999},
				{ManagerCustomerID: 4445556666, ClientCustomerID: 1010101010},
			},
		},
	}}
	resolver := NewAccountResolver(pager, 2, nil)

	accounts, err := resolver.ResolveLeafAccounts(context.Background(), "111-222-3333")
	require.NoError(t, err)

	assert.Equal(t, []string{"4445556666", "7778889999"}, accounts)
	assert.Equal(t, []int{0, 2}, pager.startIndex)
	assert.Equal(t, "1112223333", pager.customer[0])
}

func TestResolveLeafAccountsIgnoresLinksOnEmptyPages(t *testing.T) {
	pager := &fakePager{pages: map[int]*adwords.ManagedCustomerPage{
		0: {TotalNumEntries: 1, Links: []adwords.ManagedCustomerLink{{ManagerCustomerID: 5, ClientCustomerID: 6}}},
	}}
	resolver := NewAccountResolver(pager, 500, nil)

	accounts, err := resolver.ResolveLeafAccounts(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, accounts)
}

func TestResolveLeafAccountsLeaf(t *testing.T) {
	pager := &fakePager{pages: map[int]*adwords.ManagedCustomerPage{
		0: {TotalNumEntries: 1, Entries: []adwords.ManagedCustomer{{CustomerID: 1234567890}}},
	}}
	resolver := NewAccountResolver(pager, 500, nil)

	accounts, err := resolver.ResolveLeafAccounts(context.Background(), "123-456-7890")
	require.NoError(t, err)
	assert.Equal(t, []string{"1234567890"}, accounts)
	assert.Equal(t, []int{0}, pager.startIndex)
}

func TestResolveLeafAccountsErrors(t *testing.T) {
	resolver := NewAccountResolver(&fakePager{}, 500, nil)
	_, err := resolver.ResolveLeafAccounts(context.Background(), "not-an-id")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))

	failing := NewAccountResolver(&fakePager{err: errors.New(errors.ErrCodeHierarchyFailed, "denied")}, 500, nil)
	_, err = failing.ResolveLeafAccounts(context.Background(), "1")
	assert.Equal(t, errors.ErrCodeHierarchyFailed, errors.GetErrorCode(err))
}

func TestClickReportDates(t *testing.T) {
	today := date("2024-06-30")

	tests := []struct {
		name     string
		from, to civil.Date
		wantFrom civil.Date
		wantErr  bool
	}{
		{"clamped", today.AddDays(-120), today.AddDays(-10), today.AddDays(-90), false},
		{"entirely too old", today.AddDays(-120), today.AddDays(-95), civil.Date{}, true},
		{"within retention", today.AddDays(-30), today, today.AddDays(-30), false},
		{"exactly at the limit", today.AddDays(-90), today.AddDays(-90), today.AddDays(-90), false},
		{"one day past the limit", today.AddDays(-91), today.AddDays(-90), today.AddDays(-90), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ClickReportDates(tt.from, tt.to, today, 90)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeDateRangeExceeded, errors.GetErrorCode(err))
				assert.True(t, errors.IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestDaysBetween(t *testing.T) {
	d := date("2024-02-27")
	assert.Equal(t, []civil.Date{d, d.AddDays(1), d.AddDays(2), d.AddDays(3)}, DaysBetween(d, d.AddDays(3)))
	assert.Equal(t, []civil.Date{d}, DaysBetween(d, d))
	assert.Empty(t, DaysBetween(d, d.AddDays(-1)))
}

func TestValidateWindow(t *testing.T) {
	d := date("2024-01-10")
	assert.NoError(t, ValidateWindow(d, d))
	err := ValidateWindow(d, d.AddDays(-1))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
}

func TestReportDefinitions(t *testing.T) {
	from, to := date("2024-01-01"), date("2024-01-31")

	ad := AdPerformanceReport(from, to)
	assert.Equal(t, "AD_PERFORMANCE_REPORT", ad.Type)
	assert.Len(t, ad.Fields, len(warehouse.AdPerformanceSchema))
	assert.Equal(t, from, ad.Min)
	assert.Equal(t, to, ad.Max)

	kw := KeywordNamesReport(date("2018-01-01"), to)
	assert.Len(t, kw.Fields, len(warehouse.KeywordNamesSchema))
	assert.Equal(t, date("2018-01-01"), kw.Min)

	click := ClickReport(from)
	assert.Len(t, click.Fields, len(warehouse.GclidSchema))
	assert.Equal(t, from, click.Min)
	assert.Equal(t, from, click.Max)
}

func newAdsExtractor(pager CustomerPager, downloader *MockDownloader, loader *MockLoader, today civil.Date) *AdsExtractor {
	extractor := NewAdsExtractor(
		NewAccountResolver(pager, 500, nil),
		downloader,
		loader,
		AdsConfig{KeywordsSince: date("2018-01-01"), ClickRetentionDays: 90},
		nil,
	)
	extractor.Today = func() civil.Date { return today }
	return extractor
}

func leafPager(id int64) *fakePager {
	return &fakePager{pages: map[int]*adwords.ManagedCustomerPage{
		0: {TotalNumEntries: 1, Entries: []adwords.ManagedCustomer{{CustomerID: id}}},
	}}
}

func TestAdsExtractorFansOutPerDay(t *testing.T) {
	today := date("2024-06-30")
	downloader := &MockDownloader{}
	loader := &MockLoader{}

	reportOf := func(reportType string) interface{} {
		return mock.MatchedBy(func(def adwords.ReportDefinition) bool { return def.Type == reportType })
	}

	downloader.On("DownloadReport", mock.Anything, "42", reportOf(AdPerformanceReportType), adwords.HeaderlessCSV).
		Return([]byte("a,b\n"), nil).Once()
	downloader.On("DownloadReport", mock.Anything, "42", reportOf(KeywordsReportType), adwords.HeaderlessCSV).
		Return([]byte("k\n"), nil).Once()
	downloader.On("DownloadReport", mock.Anything, "42", reportOf(ClickReportType), adwords.HeaderlessCSV).
		Return([]byte("c\n"), nil).Times(4)

	loader.On("LoadCSV", mock.Anything, mock.Anything, warehouse.AppendCSV).Return(int64(1), nil)

	summary, err := newAdsExtractor(leafPager(42), downloader, loader, today).
		Run(context.Background(), "42", today.AddDays(-3), today)
	require.NoError(t, err)

	downloader.AssertExpectations(t)
	loader.AssertNumberOfCalls(t, "LoadCSV", 6)
	assert.Len(t, loader.data[warehouse.GclidListTable], 4)
	assert.Equal(t, []string{"a,b\n"}, loader.data[warehouse.AdPerformanceTable])
	assert.Equal(t, []string{"k\n"}, loader.data[warehouse.KeywordNamesTable])

	assert.Equal(t, []string{"42"}, summary.Accounts)
	assert.Equal(t, 6, summary.ReportsLoaded)
	assert.Equal(t, 0, summary.ReportsSkipped)
	assert.Equal(t, int64(6), summary.RowsLoaded)

	var clickDays []civil.Date
	for _, call := range downloader.Calls {
		def := call.Arguments.Get(2).(adwords.ReportDefinition)
		switch def.Type {
		case ClickReportType:
			clickDays = append(clickDays, def.Min)
		case KeywordsReportType:
			assert.Equal(t, date("2018-01-01"), def.Min)
			assert.Equal(t, today, def.Max)
		}
	}
	assert.Equal(t, DaysBetween(today.AddDays(-3), today), clickDays)
}

func TestAdsExtractorSkipsFailedAndEmptyDownloads(t *testing.T) {
	today := date("2024-06-30")
	downloader := &MockDownloader{}
	loader := &MockLoader{}

	downloader.On("DownloadReport", mock.Anything, "42",
		mock.MatchedBy(func(def adwords.ReportDefinition) bool { return def.Type == AdPerformanceReportType }), mock.Anything).
		Return(nil, errors.New(errors.ErrCodeReportRejected, "rejected"))
	downloader.On("DownloadReport", mock.Anything, "42",
		mock.MatchedBy(func(def adwords.ReportDefinition) bool { return def.Type == KeywordsReportType }), mock.Anything).
		Return(nil, errors.New(errors.ErrCodeReportEmpty, "Report has no rows"))
	downloader.On("DownloadReport", mock.Anything, "42",
		mock.MatchedBy(func(def adwords.ReportDefinition) bool { return def.Type == ClickReportType }), mock.Anything).
		Return([]byte("c\n"), nil)
	loader.On("LoadCSV", mock.Anything, warehouse.GclidListTable, warehouse.AppendCSV).Return(int64(3), nil)

	summary, err := newAdsExtractor(leafPager(42), downloader, loader, today).
		Run(context.Background(), "42", today, today)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ReportsLoaded)
	assert.Equal(t, 2, summary.ReportsSkipped)
	assert.Equal(t, int64(3), summary.RowsLoaded)
	loader.AssertNumberOfCalls(t, "LoadCSV", 1)
}

func TestAdsExtractorLoadFailureAborts(t *testing.T) {
	today := date("2024-06-30")
	downloader := &MockDownloader{}
	loader := &MockLoader{}

	downloader.On("DownloadReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("x\n"), nil)
	loader.On("LoadCSV", mock.Anything, warehouse.AdPerformanceTable, mock.Anything).
		Return(int64(0), errors.New(errors.ErrCodeLoadFailed, "schema mismatch"))

	_, err := newAdsExtractor(leafPager(42), downloader, loader, today).
		Run(context.Background(), "42", today, today)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeLoadFailed, errors.GetErrorCode(err))
	downloader.AssertNumberOfCalls(t, "DownloadReport", 1)
}

func TestAdsExtractorRejectsOutOfRangeBeforeAnyAccount(t *testing.T) {
	today := date("2024-06-30")
	pager := leafPager(42)
	downloader := &MockDownloader{}
	loader := &MockLoader{}

	_, err := newAdsExtractor(pager, downloader, loader, today).
		Run(context.Background(), "42", today.AddDays(-120), today.AddDays(-95))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDateRangeExceeded, errors.GetErrorCode(err))
	assert.Empty(t, pager.startIndex)
	downloader.AssertNotCalled(t, "DownloadReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdsExtractorStopsOnCancel(t *testing.T) {
	today := date("2024-06-30")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAdsExtractor(leafPager(42), &MockDownloader{}, &MockLoader{}, today).
		Run(ctx, "42", today, today)
	assert.ErrorIs(t, err, context.Canceled)
}

// stubQuerier returns fixed CSV output.
type stubQuerier struct {
	csv   string
	query string
	err   error
}

func (s *stubQuerier) QueryCSV(_ context.Context, query string, w io.Writer) (int, error) {
	s.query = query
	if s.err != nil {
		return 0, s.err
	}
	_, _ = io.WriteString(w, s.csv)
	return strings.Count(s.csv, "\n") - 1, nil
}

func TestConversionsQuery(t *testing.T) {
	query := ConversionsQuery("ADWORDS_GCLID_AGGREGATION", "2018-01-01")
	assert.Contains(t, query, "FROM ADWORDS_GCLID_AGGREGATION")
	assert.Contains(t, query, "NB_ORDERS > 0")
	assert.Contains(t, query, "CLICK_TIMESTAMP >= '2018-01-01'")
	assert.Contains(t, query, `REGEXP_SUBSTR(TRACKING_UTMZ, '^[0-9]+\\.([0-9]+)\\.', 1, 1, 'e')`)
	for _, column := range []string{"SALEDATE", "TRACKING_GCLID", "ORDERS", "REVENUE", "SALES_VALUE"} {
		assert.Contains(t, query, column)
	}
}

func TestConversionsExtractor(t *testing.T) {
	csv := "CLICK_TIMESTAMP,SALEDATE,TRACKING_GCLID,ORDERS,REVENUE,SALES_VALUE\n" +
		"2024-01-01 10:00:00,2024-01-02,abc,1,10.5,100\n"
	source := &stubQuerier{csv: csv}
	loader := &MockLoader{}
	loader.On("LoadCSV", mock.Anything, warehouse.SnowConversionsTable, warehouse.ReplaceCSVAutoDetect).Return(int64(1), nil)

	rows, err := NewConversionsExtractor(source, loader, "ADWORDS_GCLID_AGGREGATION", "2018-01-01", nil).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), rows)
	assert.Equal(t, []string{csv}, loader.data[warehouse.SnowConversionsTable])
	assert.Contains(t, source.query, "ADWORDS_GCLID_AGGREGATION")
	loader.AssertExpectations(t)
}

func TestConversionsExtractorQueryFailure(t *testing.T) {
	source := &stubQuerier{err: fmt.Errorf("warehouse suspended")}
	loader := &MockLoader{}

	_, err := NewConversionsExtractor(source, loader, "T", "2018-01-01", nil).Run(context.Background())
	require.Error(t, err)
	loader.AssertNotCalled(t, "LoadCSV", mock.Anything, mock.Anything, mock.Anything)
}
