package series

import "testing"

func TestValidateName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		// 尾部数字与连接符剥掉。
		{"Alpha Tales 01", "Alpha Tales"},
		{"魔法之旅-02", "魔法之旅"},
		{"某系列_03．", "某系列"},
		// 卷号量词剥掉（含量词连写）。
		{"情报 第", "情报"},
		{"某作品 上卷", "某作品"},
		// 量词连写中断处停止：只剥到 篇 为止。
		{"某作品 完结篇", "某作品 完结"},
		{"Series Vol.2", "Series"},
		{"Series volume 12", "Series"},
		{"Series part 3", "Series"},
		// 繁体折叠为简体后返回。
		{"魔法護衛隊", "魔法护卫队"},
		// 拒绝：太短。
		{"", ""},
		{"X", ""},
		{"a1", ""},
		// 量词只从串尾剥：中间的数字保留。
		{"第3卷", "第3"},
		// 拒绝：comic 字样。
		{"comic快报", ""},
		{"Weekly Comic", ""},
		// 拒绝：全单字碎片。
		{"a b c", ""},
		// 拒绝：尾词悬挂单字。
		{"Alpha B", ""},
		// 正常名字原样通过。
		{"魔法之旅", "魔法之旅"},
		{"Alpha Tales", "Alpha Tales"},
	}
	for _, c := range cases {
		if got := ValidateName(c.in); got != c.want {
			t.Fatalf("ValidateName(%q) 期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}
