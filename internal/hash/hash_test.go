/*
Copyright © 2024 the obs2ioda authors.
This file is part of obs2ioda.

obs2ioda is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

obs2ioda is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with obs2ioda.  If not, see <http://www.gnu.org/licenses/>.
*/

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type doc struct {
	Names []string
	Sets  map[string][]string
}

func TestFingerprint(t *testing.T) {
	a := doc{Names: []string{"latitude", "lat"}, Sets: map[string][]string{"x": {"Location"}, "y": nil}}
	b := doc{Names: []string{"latitude", "lat"}, Sets: map[string][]string{"y": nil, "x": {"Location"}}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, Fingerprint(&a), Fingerprint(&b), "pointer addresses are ignored")
	assert.Len(t, Fingerprint(a), 32)

	c := doc{Names: []string{"lat", "latitude"}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.NotEqual(t, Fingerprint(a, "rule"), Fingerprint(a))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0123456789ab", Short("0123456789abcdef"))
	assert.Equal(t, "abc", Short("abc"))
}
