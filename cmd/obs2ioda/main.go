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

// Command obs2ioda converts IODA observation files to the v3 naming
// conventions.
package main

import (
	"fmt"
	"os"

	"github.com/NCAR/obs2ioda/obs2iodautil"
)

func main() {
	if err := obs2iodautil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
