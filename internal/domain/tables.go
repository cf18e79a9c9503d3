package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	&SysAuthorizedUser{},
	&SysScheduler{},
	// Inventory
	&Product{},
	// Mercadillo ledger
	&Mercadillo{},
	&IncomeLine{},
	&ExpenseLine{},
}
