// Package pkt tests.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package pkt_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestPkt(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}
