package probe

import (
	"context"
	"fmt"

	"github.com/taoyao-code/healthportal/internal/result"
)

// Run 在异常包装中执行探针：
//   - 探针返回 error 或 panic => {healthy:false, reason:<message>}
//   - 结果违反协议 => 返回 result.ErrMalformed（探针编写错误，不做修正）
func Run(ctx context.Context, d Definition, kw Kwargs) (res result.Result, err error) {
	res, err = invoke(ctx, d, kw)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "check failed"
		}
		res = result.Unhealthy(msg)
	}
	if verr := res.ValidateStrict(); verr != nil {
		return res, fmt.Errorf("probe %s: %w", d.Name, verr)
	}
	return res, nil
}

func invoke(ctx context.Context, d Definition, kw Kwargs) (res result.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	if kw == nil {
		kw = Kwargs{}
	}
	return d.Check(ctx, kw)
}
