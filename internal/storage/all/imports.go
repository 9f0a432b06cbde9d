// Package all links every storage backend into the binary. Importing it for
// side effects registers the backends with the storage factory:
//
//	import _ "funnel/internal/storage/all"
package all

import (
	_ "funnel/internal/storage/mssql"
	_ "funnel/internal/storage/mysql"
	_ "funnel/internal/storage/postgres"
	_ "funnel/internal/storage/sqlite"
)
