// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

func TestDo(t *testing.T) {
	ctx := context.Background()

	n := 0
	testFn := func(uint) error {
		if n < 3 {
			n++
			return merr.WrapErrTransportTimeout(errors.New("slow"))
		}
		return nil
	}

	err := Do(ctx, testFn, Attempts(5), Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAttempts(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Do(ctx, func(attempt uint) error {
		assert.Equal(t, uint(calls), attempt)
		calls++
		return merr.WrapErrTransportTimeout(errors.New("slow"))
	}, Attempts(3), Sleep(time.Millisecond))
	assert.ErrorIs(t, err, merr.ErrTransportTimeout)
	assert.Equal(t, 3, calls)
}

func TestNotRetryable(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Do(ctx, func(uint) error {
		calls++
		return merr.WrapErrMarshalUnresolvedURI("rest-json", "Bucket")
	}, Attempts(5), Sleep(time.Millisecond))
	assert.ErrorIs(t, err, merr.ErrMarshalUnresolvedURI)
	assert.Equal(t, 1, calls)
}

func TestRetryErr(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Do(ctx, func(uint) error {
		calls++
		return errors.New("some error")
	}, Attempts(3), Sleep(time.Millisecond), RetryErr(func(error) bool { return true }))
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestUnrecoverable(t *testing.T) {
	ctx := context.Background()

	cause := merr.WrapErrTransportTimeout(errors.New("slow"))
	calls := 0
	err := Do(ctx, func(uint) error {
		calls++
		return Unrecoverable(cause)
	}, Attempts(5), Sleep(time.Millisecond))
	assert.Equal(t, 1, calls)
	assert.Same(t, cause, err)
	assert.True(t, IsRecoverable(err))
	assert.False(t, IsRecoverable(Unrecoverable(cause)))
}

func TestContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func(uint) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	calls := 0
	err = Do(ctx, func(uint) error {
		calls++
		cancel()
		return merr.WrapErrTransportTimeout(errors.New("slow"))
	}, Attempts(10), Sleep(50*time.Millisecond), Jitter(0))
	assert.ErrorIs(t, err, merr.ErrTransportTimeout)
	assert.Equal(t, 1, calls)
}

func TestContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := Do(ctx, func(uint) error {
		calls++
		return merr.WrapErrTransportTimeout(errors.New("slow"))
	}, Attempts(10), Sleep(time.Second), Jitter(0))
	assert.ErrorIs(t, err, merr.ErrTransportTimeout)
	assert.Equal(t, 1, calls)
}
