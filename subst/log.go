package subst

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("subst")
