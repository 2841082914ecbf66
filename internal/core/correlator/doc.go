// Package correlator 实现请求/响应关联
//
// 每个未完成的请求以关联 ID 登记一个条目，条目持有一对结算函数
// （resolve / reject）和一个超时定时器。以下任一事件首先发生即结算条目：
//
//   - 收到匹配的响应（Resolve）
//   - 投递失败（Reject）
//   - 超时定时器触发
//   - 关联器关闭（Close）
//
// 结算通过从表中摘除条目完成，摘除成功者才执行结算函数，因此每个请求
// 恰好结算一次。结算后到达的响应被忽略，最近结算的关联 ID 保存在一个
// LRU 中，用于识别并记录这类迟到响应。
package correlator
