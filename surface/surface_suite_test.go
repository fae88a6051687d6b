package surface

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestSurface(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Surface Suite")
}
