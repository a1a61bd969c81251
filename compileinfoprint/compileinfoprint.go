// compileinfoprint is imported for the side effect of printing the compileinfo
// to os.Stderr when a tool starts.
package compileinfoprint

import "github.com/carbocation/fracback/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
