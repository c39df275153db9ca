package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/dispatch/mocks"
	"github.com/mattjoyce/bundlehost/internal/instance"
)

func TestExecuteSingleStorageReadFailureRaises(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockInstanceStore(ctrl)
	registry := mocks.NewMockBundleRegistry(ctrl)

	store.EXPECT().Get(gomock.Any(), "inst-1").Return(nil, errors.New("db gone"))

	o := New(store, registry, nil)
	err := o.ExecuteSingle(context.Background(), "inst-1", "ev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

func TestExecuteSingleNoStoreWriteWhenBundleMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockInstanceStore(ctrl)
	registry := mocks.NewMockBundleRegistry(ctrl)

	in := &instance.Instance{ID: "inst-1", BundleID: "ghost", Properties: instance.Map{}}
	store.EXPECT().Get(gomock.Any(), "inst-1").Return(in, nil)
	registry.EXPECT().Get("ghost").Return(nil, false)
	// No Update expectation: nothing may be written.

	o := New(store, registry, nil)
	require.NoError(t, o.ExecuteSingle(context.Background(), "inst-1", "ev"))
}

func TestRunRecurringPageSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockInstanceStore(ctrl)
	registry := mocks.NewMockBundleRegistry(ctrl)

	h := &bundle.Func{BundleID: "crm", BundleVersion: "1.0.0"}
	job := bundle.RecurringJob{Name: "nightly", Schedule: "@every 24h"}

	registry.EXPECT().Get("crm").Return(h, true)
	registry.EXPECT().RecurringJob("crm", "nightly").Return(job, true)

	page1 := []*instance.Instance{
		{ID: "a", BundleID: "crm", Properties: instance.Map{}},
		{ID: "b", BundleID: "crm", Properties: instance.Map{}},
	}
	// Pages must be requested in increasing order and stop at the first
	// empty result.
	gomock.InOrder(
		store.EXPECT().GetPage(gomock.Any(), "crm", 1, 2).Return(page1, nil),
		store.EXPECT().GetPage(gomock.Any(), "crm", 2, 2).Return(nil, nil),
	)
	store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)

	o := New(store, registry, nil, WithPageSize(2))
	sum, err := o.RunRecurring(context.Background(), "crm", "nightly", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Pages)
	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.Updated)
}
