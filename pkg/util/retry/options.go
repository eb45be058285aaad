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
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

type config struct {
	// attempts 为最大尝试次数，0 表示不限次数。
	attempts uint
	// sleep 为首次重试前的休眠时间，之后按指数增长。
	sleep time.Duration
	// maxSleepTime 为单次休眠的上限。
	maxSleepTime time.Duration
	// jitter 为休眠时间的随机抖动比例。
	jitter float64

	isRetryErr func(err error) bool
}

func newDefaultConfig() *config {
	return &config{
		attempts:     uint(3),
		sleep:        100 * time.Millisecond,
		maxSleepTime: 20 * time.Second,
		jitter:       0.5,
		isRetryErr:   merr.IsRetryableErr,
	}
}

func (c *config) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.sleep
	b.MaxInterval = c.maxSleepTime
	b.RandomizationFactor = c.jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Option is used to config the retry function.
type Option func(*config)

// Attempts is used to config the max retry times.
func Attempts(attempts uint) Option {
	return func(c *config) {
		c.attempts = attempts
	}
}

// Sleep is used to config the initial interval time of each execution.
func Sleep(sleep time.Duration) Option {
	return func(c *config) {
		c.sleep = sleep
		// ensure max retry interval is always larger than retry interval
		if c.sleep*2 > c.maxSleepTime {
			c.maxSleepTime = 2 * c.sleep
		}
	}
}

// MaxSleepTime is used to config the max interval time of each execution.
func MaxSleepTime(maxSleepTime time.Duration) Option {
	return func(c *config) {
		// ensure max retry interval is always larger than retry interval
		if c.sleep*2 > maxSleepTime {
			c.maxSleepTime = 2 * c.sleep
		} else {
			c.maxSleepTime = maxSleepTime
		}
	}
}

// Jitter 设置休眠时间的随机抖动比例，0 表示不抖动。
func Jitter(factor float64) Option {
	return func(c *config) {
		c.jitter = factor
	}
}

// RetryErr 设置判断错误是否可重试的函数，默认为 merr.IsRetryableErr。
func RetryErr(isRetryErr func(err error) bool) Option {
	return func(c *config) {
		c.isRetryErr = isRetryErr
	}
}
