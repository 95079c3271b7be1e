package pipeline

import (
	"context"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"searchreporting/internal/export"
	"searchreporting/internal/extract"
	"searchreporting/pkg/errors"
)

type MockConversions struct{ mock.Mock }

func (m *MockConversions) Run(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockAds struct{ mock.Mock }

func (m *MockAds) Run(ctx context.Context, root string, from, to civil.Date) (*extract.AdsSummary, error) {
	args := m.Called(ctx, root, from, to)
	summary, _ := args.Get(0).(*extract.AdsSummary)
	return summary, args.Error(1)
}

type MockJoin struct{ mock.Mock }

func (m *MockJoin) Run(ctx context.Context, from, to civil.Date) error {
	args := m.Called(ctx, from, to)
	return args.Error(0)
}

type MockExport struct{ mock.Mock }

func (m *MockExport) Run(ctx context.Context) (*export.Result, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*export.Result)
	return result, args.Error(1)
}

type mocks struct {
	conversions *MockConversions
	ads         *MockAds
	join        *MockJoin
	export      *MockExport
}

func newPipeline() (*Pipeline, mocks) {
	m := mocks{&MockConversions{}, &MockAds{}, &MockJoin{}, &MockExport{}}
	p := New(Stages{
		Conversions: m.conversions,
		Ads:         m.ads,
		Join:        m.join,
		Export:      m.export,
	}, civil.Date{Year: 2000, Month: 1, Day: 1}, nil)
	return p, m
}

var (
	from = civil.Date{Year: 2024, Month: 3, Day: 1}
	to   = civil.Date{Year: 2024, Month: 3, Day: 4}
)

func TestRunExecutesStagesInOrder(t *testing.T) {
	p, m := newPipeline()

	var order []string
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { order = append(order, name) }
	}

	ads := &extract.AdsSummary{Accounts: []string{"111", "222"}, ReportsLoaded: 12}
	m.conversions.On("Run", mock.Anything).Return(int64(42), nil).Run(record("conversions"))
	m.ads.On("Run", mock.Anything, "123-456-7890", from, to).Return(ads, nil).Run(record("ads"))
	m.join.On("Run", mock.Anything, civil.Date{Year: 2000, Month: 1, Day: 1}, to).Return(nil).Run(record("join"))
	m.export.On("Run", mock.Anything).Return(&export.Result{URL: "https://storage.googleapis.com/b/o", Rows: 7}, nil).Run(record("export"))

	summary, err := p.Run(context.Background(), Request{Root: "123-456-7890", From: from, To: to})
	require.NoError(t, err)

	assert.Equal(t, []string{"conversions", "ads", "join", "export"}, order)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, int64(42), summary.ConversionRows)
	assert.Same(t, ads, summary.Ads)
	assert.Equal(t, 7, summary.Export.Rows)
	assert.Len(t, summary.Steps, 4)
	assert.Nil(t, summary.Failed())
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	p, m := newPipeline()

	rangeErr := errors.New(errors.ErrCodeDateRangeExceeded, "too old").WithContext("to", to.String())
	m.conversions.On("Run", mock.Anything).Return(int64(3), nil)
	m.ads.On("Run", mock.Anything, "1234567890", from, to).Return(nil, rangeErr)

	summary, err := p.Run(context.Background(), Request{Root: "1234567890", From: from, To: to})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDateRangeExceeded, errors.GetErrorCode(err))

	failed := summary.Failed()
	require.NotNil(t, failed)
	assert.Equal(t, "ads", failed.Name)
	assert.Len(t, summary.Steps, 2)
	m.join.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	m.export.AssertNotCalled(t, "Run", mock.Anything)
}

func TestRunExportFailurePropagates(t *testing.T) {
	p, m := newPipeline()

	m.conversions.On("Run", mock.Anything).Return(int64(0), nil)
	m.ads.On("Run", mock.Anything, mock.Anything, from, to).Return(&extract.AdsSummary{}, nil)
	m.join.On("Run", mock.Anything, mock.Anything, to).Return(nil)
	m.export.On("Run", mock.Anything).Return(nil, errors.Wrap(fmt.Errorf("403"), errors.ErrCodeUploadFailed, "upload"))

	summary, err := p.Run(context.Background(), Request{Root: "1234567890", From: from, To: to})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUploadFailed, errors.GetErrorCode(err))
	assert.Equal(t, "export", summary.Failed().Name)
	assert.Nil(t, summary.Export)
}

func TestRunValidatesRequest(t *testing.T) {
	p, m := newPipeline()

	_, err := p.Run(context.Background(), Request{From: from, To: to})
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))

	_, err = p.Run(context.Background(), Request{Root: "1", From: to, To: from})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))

	m.conversions.AssertNotCalled(t, "Run", mock.Anything)
}

func TestRunCancelled(t *testing.T) {
	p, m := newPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx, Request{Root: "1", From: from, To: to})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Steps)
	m.conversions.AssertNotCalled(t, "Run", mock.Anything)
}
