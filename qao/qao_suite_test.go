// Package qao tests.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package qao_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestQao(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
