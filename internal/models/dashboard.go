package models

import "github.com/shopspring/decimal"

type RevenuePoint struct {
	Label  string          `json:"name"`
	Amount decimal.Decimal `json:"revenue"`
}

type StatusCount struct {
	Status string `json:"name"`
	Count  int    `json:"value"`
}

type AdminAggregate struct {
	TotalAmountEarned    decimal.Decimal `json:"totalAmountEarned"`
	TotalUsers           int             `json:"totalUsers"`
	TotalProduct         int             `json:"totalProduct"`
	TotalOrders          int             `json:"totalOrders"`
	TotalPayments        int             `json:"totalPayments"`
	TotalIncomeLast7Days decimal.Decimal `json:"totalIncomeLast7Days"`
	RevenueData          []RevenuePoint  `json:"revenueData"`
	MonthlyData          []RevenuePoint  `json:"monthlyData"`
	OrderStatusData      []StatusCount   `json:"orderStatusData"`
	RecentOrders         []Order         `json:"recentOrders"`
}

type UserAggregate struct {
	TotalPayments   int             `json:"totalPayments"`
	TotalOrders     int             `json:"totalOrders"`
	DeliveredOrders int             `json:"deliveredOrders"`
	TotalMoneySpent decimal.Decimal `json:"totalMoneySpent"`
	RecentOrders    []Order         `json:"recentOrders"`
	RecentPayments  []Payment       `json:"recentPayments"`
	UserInfo        User            `json:"userInfo"`
}
